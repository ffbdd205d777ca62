package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

func TestSubject(t *testing.T) {
	ev := Event{Name: EventPhaseTwoComplete, LeadID: "L1"}
	assert.Equal(t, "leads.L1.phase_two_complete", Subject("leads", ev))
	assert.Equal(t, "leads.L1.phase_two_complete", NewNATSNotifier(nil, "").Subject(ev))
}

func TestLogNotifier(t *testing.T) {
	tl := logging.NewTestLogger()
	n := NewLogNotifier(tl.Logger)
	require.NoError(t, n.Notify(context.Background(), Event{Name: EventPhaseOneComplete, LeadID: "L1", Status: models.StatusPhase1Complete}))
	tl.AssertLogged(t, zapcore.InfoLevel, "lead event")
	tl.AssertField(t, "lead event", "lead_id", "L1")
}

func TestNATSNotifier(t *testing.T) {
	url := os.Getenv("OXILEADS_TEST_NATS_URL")
	if url == "" {
		t.Skip("OXILEADS_TEST_NATS_URL not set")
	}
	nc, err := Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	n := NewNATSNotifier(nc, "test-leads")
	ev := Event{Name: EventPhaseOneComplete, LeadID: uuid.NewString(), Status: models.StatusPhase1Complete, At: time.Now().UTC()}

	sub, err := nc.SubscribeSync(n.Subject(ev))
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	require.NoError(t, n.Notify(context.Background(), ev))
	var msg *nats.Msg
	msg, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, ev.LeadID, got.LeadID)
}
