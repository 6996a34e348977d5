package requeue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pable/go-pbp-metrics/internal/model"
)

type fakeStream struct {
	adds []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.adds = append(f.adds, a)
	cmd.SetVal("1-0")
	return cmd
}

func TestFromRecord(t *testing.T) {
	rec := model.VerificationRecord{
		GameID: "g1", Grade: model.GradeMinor, FromOrdinal: 40, ToOrdinal: 420,
		WorstStat: "player:h2 reb", MaxAbsError: 1,
		Errors: []model.StatError{{Stat: "reb", AbsError: 1}, {Stat: "pts"}},
	}
	req := FromRecord(rec)
	if req.GameID != "g1" || req.Grade != "B" || req.FromOrdinal != 40 || req.ToOrdinal != 420 {
		t.Errorf("request = %+v", req)
	}
	if req.Reason != "verification grade B, 1 mismatched stats" {
		t.Errorf("reason = %q", req.Reason)
	}
}

func TestRedisQueueEnqueue(t *testing.T) {
	fake := &fakeStream{}
	q := NewRedisQueue(fake, "")
	q.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := Request{GameID: "g1", FromOrdinal: 1, ToOrdinal: 9, Grade: "C"}
	if err := q.Enqueue(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(fake.adds) != 1 {
		t.Fatalf("adds = %d, want 1", len(fake.adds))
	}
	a := fake.adds[0]
	if a.Stream != DefaultStream {
		t.Errorf("stream = %q", a.Stream)
	}
	values := a.Values.(map[string]interface{})
	if values["game_id"] != "g1" || values["timestamp"] != int64(1700000000) {
		t.Errorf("values = %v", values)
	}
	var got Request
	if err := json.Unmarshal([]byte(values["data"].(string)), &got); err != nil {
		t.Fatal(err)
	}
	if got != req {
		t.Errorf("round trip = %+v, want %+v", got, req)
	}
}

func TestRedisQueueError(t *testing.T) {
	boom := errors.New("connection refused")
	q := NewRedisQueue(&fakeStream{err: boom}, "custom")
	err := q.Enqueue(context.Background(), Request{GameID: "g1"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestDiscard(t *testing.T) {
	var q Queue = Discard{}
	if err := q.Enqueue(context.Background(), Request{}); err != nil {
		t.Error(err)
	}
}
