package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretStore resolves a JSON key/value secret such as
// {"STRIPE_SECRET_KEY": "..."}.
type SecretStore interface {
	Lookup(ctx context.Context, name string) (map[string]string, error)
}

// SecretsManagerStore decodes Secrets Manager values once per process.
type SecretsManagerStore struct {
	client *secretsmanager.Client

	mu     sync.Mutex
	values map[string]map[string]string
}

func NewSecretsManagerStore(cfg sdkaws.Config) *SecretsManagerStore {
	return &SecretsManagerStore{
		client: secretsmanager.NewFromConfig(cfg),
		values: make(map[string]map[string]string),
	}
}

func (s *SecretsManagerStore) Lookup(ctx context.Context, name string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[name]; ok {
		return v, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: sdkaws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s is binary", name)
	}

	kv := map[string]string{}
	if err := json.Unmarshal([]byte(*out.SecretString), &kv); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", name, err)
	}
	s.values[name] = kv
	return kv, nil
}
