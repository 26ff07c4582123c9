package cli_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/studytrack/internal/cli"
	"github.com/limbo/studytrack/internal/synchronizer"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/stretchr/testify/assert"
)

func TestNotifier(t *testing.T) {
	var out bytes.Buffer
	n := cli.NewNotifier(&out)
	n.Notify(synchronizer.Notice{Level: synchronizer.LevelWarning, Message: "saved on this device", Err: errors.New("timeout")})
	n.Notify(synchronizer.Notice{Level: synchronizer.LevelSuccess, Message: "synced 2 sessions"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[warning]")
	assert.Contains(t, lines[0], "(timeout)")
	assert.Contains(t, lines[1], "[success] synced 2 sessions")
}

func TestRenderSessions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		cli.RenderSessions(&out, nil, time.UTC)
		assert.Contains(t, out.String(), "no sessions yet")
	})
	t.Run("marks pending", func(t *testing.T) {
		var out bytes.Buffer
		pending := entity.Session{
			ID:        entity.NewPendingID(),
			UserID:    uuid.New(),
			Subject:   "english",
			Minutes:   130,
			StartedAt: time.Date(2025, time.March, 10, 9, 5, 0, 0, time.UTC),
		}
		confirmed := pending
		confirmed.ID = entity.ConfirmedID(uuid.NewString())
		confirmed.Synced = true
		confirmed.Minutes = 60

		cli.RenderSessions(&out, []entity.Session{pending, confirmed}, time.UTC)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[1], pending.ID.String())
		assert.Contains(t, lines[1], "2025-03-10 09:05")
		assert.Contains(t, lines[1], "2時間10分")
		assert.Contains(t, lines[1], "(pending)")
		assert.Contains(t, lines[2], "1時間")
		assert.NotContains(t, lines[2], "(pending)")
	})
}

func TestRenderStatsUnknownFormat(t *testing.T) {
	var out bytes.Buffer
	err := cli.RenderStats(&out, entity.StatsReport{}, "csv")
	assert.ErrorContains(t, err, "unknown output format")
	assert.Empty(t, out.String())
}
