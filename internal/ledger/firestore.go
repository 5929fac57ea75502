package ledger

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRepository stores one document per owner. Access tokens are
// encrypted before they are written.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
	ttl        time.Duration
}

var _ Repository = (*FirestoreRepository)(nil)

// LedgerDoc represents a ledger document in Firestore
type LedgerDoc struct {
	Owner     string       `firestore:"owner"`
	Accounts  []AccountDoc `firestore:"accounts"`
	UpdatedAt time.Time    `firestore:"updated_at"`
	ExpiresAt time.Time    `firestore:"expires_at"`
}

// AccountDoc is one linked account inside a LedgerDoc
type AccountDoc struct {
	Provider    string `firestore:"provider"`
	ProviderID  string `firestore:"provider_id"`
	Name        string `firestore:"name"`
	Image       string `firestore:"image,omitempty"`
	AccessToken string `firestore:"access_token,omitempty"` // encrypted
}

// NewFirestoreRepository creates a Firestore repository. credentialsFile is optional;
// without it the default application credentials are used.
func NewFirestoreRepository(ctx context.Context, projectID, database, collection, credentialsFile string, encryptor crypto.Encryptor, ttl time.Duration) (*FirestoreRepository, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = "gamefront_linked_accounts"
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("ledger", "Using Firestore ledger", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreRepository{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
		ttl:        ttl,
	}, nil
}

func (f *FirestoreRepository) Load(ctx context.Context, owner string) ([]LinkedAccount, error) {
	doc, err := f.client.Collection(f.collection).Doc(owner).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []LinkedAccount{}, nil
		}
		return nil, fmt.Errorf("failed to get ledger from Firestore: %w", err)
	}

	var ledgerDoc LedgerDoc
	if err := doc.DataTo(&ledgerDoc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	if !ledgerDoc.ExpiresAt.IsZero() && time.Now().After(ledgerDoc.ExpiresAt) {
		return []LinkedAccount{}, nil
	}
	return f.fromDocs(ledgerDoc.Accounts)
}

// fromDocs decrypts stored accounts, skipping records that lack a provider,
// provider ID or name.
func (f *FirestoreRepository) fromDocs(docs []AccountDoc) ([]LinkedAccount, error) {
	accounts := make([]LinkedAccount, 0, len(docs))
	for _, a := range docs {
		account := LinkedAccount{
			Provider:   idp.ProviderType(a.Provider),
			ProviderID: a.ProviderID,
			Name:       a.Name,
			Image:      a.Image,
		}
		if !account.complete() {
			log.LogDebugWithFields("ledger", "Skipping incomplete Firestore account record", map[string]any{
				"provider": a.Provider,
			})
			continue
		}
		if a.AccessToken != "" {
			decrypted, err := f.encryptor.Decrypt(a.AccessToken)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt access token: %w", err)
			}
			account.AccessToken = decrypted
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (f *FirestoreRepository) Save(ctx context.Context, owner string, accounts []LinkedAccount) error {
	now := time.Now()
	ledgerDoc := LedgerDoc{
		Owner:     owner,
		Accounts:  make([]AccountDoc, 0, len(accounts)),
		UpdatedAt: now,
		ExpiresAt: now.Add(f.ttl),
	}

	for _, a := range accounts {
		accountDoc := AccountDoc{
			Provider:   string(a.Provider),
			ProviderID: a.ProviderID,
			Name:       a.Name,
			Image:      a.Image,
		}
		if a.AccessToken != "" {
			encrypted, err := f.encryptor.Encrypt(a.AccessToken)
			if err != nil {
				return fmt.Errorf("failed to encrypt access token: %w", err)
			}
			accountDoc.AccessToken = encrypted
		}
		ledgerDoc.Accounts = append(ledgerDoc.Accounts, accountDoc)
	}

	if _, err := f.client.Collection(f.collection).Doc(owner).Set(ctx, ledgerDoc); err != nil {
		return fmt.Errorf("failed to store ledger in Firestore: %w", err)
	}
	return nil
}

func (f *FirestoreRepository) Delete(ctx context.Context, owner string) error {
	if _, err := f.client.Collection(f.collection).Doc(owner).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete ledger from Firestore: %w", err)
	}
	return nil
}

// Close closes the Firestore client
func (f *FirestoreRepository) Close() error {
	return f.client.Close()
}
