package notify

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
)

type fakeStore struct {
	localUsers     []int64
	dmParticipants map[int64][]int64
	feedSubs       map[int64][]int64
	threadSubs     map[int64][]int64
	messages       map[int64]*models.Message
}

func (f *fakeStore) ListLocalUserIDs(context.Context) ([]int64, error) { return f.localUsers, nil }
func (f *fakeStore) ListDMParticipantIDs(_ context.Context, id int64) ([]int64, error) {
	return f.dmParticipants[id], nil
}
func (f *fakeStore) ListFeedSubscriberIDs(_ context.Context, id int64) ([]int64, error) {
	return f.feedSubs[id], nil
}
func (f *fakeStore) ListThreadSubscriberIDs(_ context.Context, id int64) ([]int64, error) {
	return f.threadSubs[id], nil
}
func (f *fakeStore) GetMessage(_ context.Context, id int64) (*models.Message, error) {
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, models.ErrMessageNotFound
}
func (f *fakeStore) ListUserPushSubscriptions(context.Context, int64) ([]*models.PushSubscription, error) {
	return nil, nil
}
func (f *fakeStore) DeletePushSubscription(context.Context, string) error { return nil }

// recordingDispatcher captures per-user notification deliveries.
type recordingDispatcher struct {
	sent map[int64][]events.NotificationData
}

func (d *recordingDispatcher) Dispatch(context.Context, events.Event) error { return nil }
func (d *recordingDispatcher) DispatchTo(_ context.Context, evt events.Event, userIDs []int64) error {
	data := evt.D.(events.NotificationData)
	for _, id := range userIDs {
		d.sent[id] = append(d.sent[id], data)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func newNotifier(st *fakeStore) (*Notifier, *recordingDispatcher) {
	d := &recordingDispatcher{sent: make(map[int64][]events.NotificationData)}
	hub := gateway.NewHub(gateway.Config{}, nil)
	return New(st, hub, d, PushConfig{}), d
}

func TestEveryoneMentionInGroupDM(t *testing.T) {
	t.Parallel()

	st := &fakeStore{dmParticipants: map[int64][]int64{9: {1, 2, 3}}}
	n, d := newNotifier(st)

	msg := &models.Message{ID: 100, DMID: ptr[int64](9), AuthorID: ptr[int64](1), Body: ptr("hey @everyone")}
	n.MessageCreated(context.Background(), msg, []int64{MentionEveryone})

	// Bob and carol get exactly one mention each; alice (the author)
	// gets nothing.
	require.Len(t, d.sent[2], 1)
	require.Len(t, d.sent[3], 1)
	assert.Empty(t, d.sent[1])
	assert.Equal(t, KindMention, d.sent[2][0].Type)
	assert.Equal(t, int64(1), d.sent[2][0].ActorID)
}

func TestMentionOutranksReplyAndSubscription(t *testing.T) {
	t.Parallel()

	st := &fakeStore{
		feedSubs: map[int64][]int64{5: {2, 3}},
		messages: map[int64]*models.Message{50: {ID: 50, AuthorID: ptr[int64](2)}},
	}
	n, d := newNotifier(st)

	msg := &models.Message{
		ID:       101,
		FeedID:   ptr[int64](5),
		AuthorID: ptr[int64](1),
		ReplyTo:  ptr[int64](50),
		Body:     ptr("hi"),
	}
	n.MessageCreated(context.Background(), msg, []int64{2})

	// User 2 is mentioned, replied-to, and subscribed: one
	// notification, of the strongest kind.
	require.Len(t, d.sent[2], 1)
	assert.Equal(t, KindMention, d.sent[2][0].Type)

	// User 3 is only subscribed.
	require.Len(t, d.sent[3], 1)
	assert.Equal(t, KindMessage, d.sent[3][0].Type)
}

func TestReplyNotifiesParentAuthor(t *testing.T) {
	t.Parallel()

	st := &fakeStore{
		messages: map[int64]*models.Message{50: {ID: 50, AuthorID: ptr[int64](7)}},
	}
	n, d := newNotifier(st)

	msg := &models.Message{ID: 102, FeedID: ptr[int64](5), AuthorID: ptr[int64](1), ReplyTo: ptr[int64](50)}
	n.MessageCreated(context.Background(), msg, nil)

	require.Len(t, d.sent[7], 1)
	assert.Equal(t, KindReply, d.sent[7][0].Type)
}

func TestBodyPreviewTruncation(t *testing.T) {
	t.Parallel()

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	p := preview(ptr(string(long)))
	require.NotNil(t, p)
	assert.Len(t, *p, previewLen)

	// A multi-byte rune straddling the cut is dropped whole, never
	// split into an invalid sequence: the é below occupies bytes 99
	// and 100, right across the limit.
	multi := strings.Repeat("x", previewLen-1) + "éllo"
	p = preview(ptr(multi))
	require.NotNil(t, p)
	assert.True(t, utf8.ValidString(*p))
	assert.Equal(t, strings.Repeat("x", previewLen-1), *p)

	assert.Nil(t, preview(nil))
}
