package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/electricity-bill-converter/internal/config"
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

func testBill() models.Bill {
	return models.Bill{
		ID: uuid.MustParse("6f1c1c0e-8a43-4d0c-9a55-6f4f5f1f3a11"),
		ParsedBill: models.ParsedBill{
			AccountNumber:      "291431120",
			BillAmount:         decimal.RequireFromString("186.59"),
			BillDate:           "2018-03-16",
			BillDateRangeStart: "2018-02-13",
			BillDateRangeEnd:   "2018-03-14",
			TotalUnitsConsumed: decimal.NewFromInt(268),
			MeterReading:       decimal.NewFromInt(84220),
		},
	}
}

func TestKafkaPublisherSendsBill(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "291431120" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "bills" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		value, _ := msg.Value.Encode()
		var got map[string]any
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got["accountNumber"] != "291431120" || got["billAmount"] != 186.59 {
			return errors.New("unexpected payload " + string(value))
		}
		return nil
	})

	p := NewKafkaPublisher(producer, "bills", nil)
	require.NoError(t, p.PublishBill(context.Background(), testBill()))
	require.NoError(t, p.Close())
}

func TestKafkaPublisherReportsFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisher(producer, "bills", nil)
	err := p.PublishBill(context.Background(), testBill())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaPublisherCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := NewKafkaPublisher(producer, "bills", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.PublishBill(ctx, testBill()), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNewDisabledIsNop(t *testing.T) {
	p, err := New(config.KafkaConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.PublishBill(context.Background(), testBill()))
}

func TestParseRequiredAcks(t *testing.T) {
	tests := []struct {
		in      string
		want    sarama.RequiredAcks
		wantErr bool
	}{
		{"none", sarama.NoResponse, false},
		{"leader", sarama.WaitForLocal, false},
		{"ALL", sarama.WaitForAll, false},
		{"", sarama.WaitForAll, false},
		{"sometimes", sarama.WaitForAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRequiredAcks(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProducerConfigReturnsSuccesses(t *testing.T) {
	c, err := producerConfig(config.KafkaConfig{RequiredAcks: "all", RetryMax: 5})
	require.NoError(t, err)
	assert.True(t, c.Producer.Return.Successes)
	assert.Equal(t, 5, c.Producer.Retry.Max)
	assert.NoError(t, c.Validate())
}
