package services_test

import (
	"context"
	"errors"
	"sync"

	"shop-service/models"
	"shop-service/repository"
)

type fakeProvider struct {
	mu        sync.Mutex
	requests  []models.PaymentSessionRequest
	createErr error
	session   *models.PaymentSession
	getErr    error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.PaymentSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeProvider) GetSession(_ context.Context, id string) (*models.PaymentSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.session == nil {
		return nil, errors.New("no such session")
	}
	s := *f.session
	s.ID = id
	return &s, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakePublisher struct {
	topic     string
	eventType string
	messages  [][]byte
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, eventType string, payload []byte) error {
	f.topic = topic
	f.eventType = eventType
	f.messages = append(f.messages, payload)
	return nil
}

// flakyCommitRepo fails CommitStock while down is set.
type flakyCommitRepo struct {
	*repository.MemoryProductRepository
	down bool
}

func (r *flakyCommitRepo) CommitStock(ctx context.Context, cart models.Cart) ([]models.StockChange, error) {
	if r.down {
		return nil, errors.New("database unavailable")
	}
	return r.MemoryProductRepository.CommitStock(ctx, cart)
}
