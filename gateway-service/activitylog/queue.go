package activitylog

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Message is a dequeued queue message.
type Message struct {
	ID      string
	Receipt string
	Text    string
}

// Queue is the subset of a message queue used by the write-behind path.
type Queue interface {
	Enqueue(ctx context.Context, text string) error
	// Dequeue returns nil when the queue is empty.
	Dequeue(ctx context.Context) (*Message, error)
	Delete(ctx context.Context, id, receipt string) error
}

// AzureQueue is a Queue backed by Azure Queue Storage.
type AzureQueue struct {
	client *azqueue.QueueClient
}

func NewAzureQueue(connStr, name string) (*AzureQueue, error) {
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return nil, err
	}
	return &AzureQueue{client: client}, nil
}

// EnsureQueue creates the queue unless it already exists.
func (q *AzureQueue) EnsureQueue(ctx context.Context) error {
	_, err := q.client.Create(ctx, nil)
	var respErr *azcore.ResponseError
	if err != nil && !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
		return err
	}
	return nil
}

func (q *AzureQueue) Enqueue(ctx context.Context, text string) error {
	_, err := q.client.EnqueueMessage(ctx, text, nil)
	return err
}

func (q *AzureQueue) Dequeue(ctx context.Context) (*Message, error) {
	resp, err := q.client.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &Message{}
	if msg.MessageID != nil {
		out.ID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.Receipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		out.Text = *msg.MessageText
	}
	return out, nil
}

func (q *AzureQueue) Delete(ctx context.Context, id, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, id, receipt, nil)
	return err
}

// Pending returns the approximate number of queued messages.
func (q *AzureQueue) Pending(ctx context.Context) (int, error) {
	resp, err := q.client.GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if resp.ApproximateMessagesCount == nil {
		return 0, nil
	}
	return int(*resp.ApproximateMessagesCount), nil
}
