package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/finwiz/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestAMQPPublisher_Publish(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	notification := model.Notification{
		ID:        "6f1c2a4e-0000-4000-8000-000000000001",
		UserID:    4,
		BucketID:  2,
		Band:      model.BandNinety,
		Title:     "Travel budget is almost spent",
		Message:   "Travel spending has reached 90% of this month's limit.",
		CreatedAt: created,
	}

	ch := &mockChannel{}
	ch.On("PublishWithContext", mock.Anything, "finwiz", "notifications", false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var body Message
			if err := json.Unmarshal(msg.Body, &body); err != nil {
				return false
			}
			return msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.MessageId == notification.ID &&
				body.UserID == 4 &&
				body.Band == "ninety_percent" &&
				body.Title == notification.Title
		})).Return(nil).Once()
	ch.On("Close").Return(nil).Once()

	publisher := newAMQPPublisher(ch, "finwiz", "notifications")
	require.NoError(t, publisher.Publish(context.Background(), notification))
	require.NoError(t, publisher.Close())

	ch.AssertExpectations(t)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &mockChannel{}
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(errors.New("channel closed"))

	publisher := newAMQPPublisher(ch, "finwiz", "notifications")
	err := publisher.Publish(context.Background(), model.Notification{ID: "n1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n1")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), model.Notification{}))
	assert.NoError(t, p.Close())
}
