package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bilgisen/newsbot/internal/cache"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/bilgisen/newsbot/internal/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type sent struct {
	photo   []byte
	text    string
	buttons []Button
}

type edit struct {
	ref     MessageRef
	text    string
	caption bool
}

type answer struct {
	id    string
	text  string
	alert bool
}

type fakeSurface struct {
	mu        sync.Mutex
	nextID    int64
	sendErr   error
	editErr   error
	sent      []sent
	edits     []edit
	unbuttons []MessageRef
	answers   []answer
}

func (f *fakeSurface) send(s sent) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return MessageRef{}, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, s)
	return MessageRef{ChatID: -100, MessageID: f.nextID}, nil
}

func (f *fakeSurface) SendText(_ context.Context, text string, buttons []Button) (MessageRef, error) {
	return f.send(sent{text: text, buttons: buttons})
}

func (f *fakeSurface) SendPhoto(_ context.Context, photo []byte, caption string, buttons []Button) (MessageRef, error) {
	return f.send(sent{photo: photo, text: caption, buttons: buttons})
}

func (f *fakeSurface) EditText(_ context.Context, ref MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ref: ref, text: text})
	return f.editErr
}

func (f *fakeSurface) EditCaption(_ context.Context, ref MessageRef, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ref: ref, text: caption, caption: true})
	return f.editErr
}

func (f *fakeSurface) RemoveButtons(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbuttons = append(f.unbuttons, ref)
	return f.editErr
}

func (f *fakeSurface) Answer(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{id: id, text: text, alert: alert})
	return nil
}

func (f *fakeSurface) lastAnswer() answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return answer{}
	}
	return f.answers[len(f.answers)-1]
}

type publication struct {
	photo   []byte
	caption string
}

type fakeChannel struct {
	mu    sync.Mutex
	err   error
	posts []publication
}

func (f *fakeChannel) PublishText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, publication{caption: text})
	return nil
}

func (f *fakeChannel) PublishPhoto(_ context.Context, photo []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, publication{photo: photo, caption: caption})
	return nil
}

type ModerationTestSuite struct {
	suite.Suite

	ctx     context.Context
	posts   *storage.PostStore
	blobs   *storage.FileBlobStore
	worker  *worker.Worker
	surface *fakeSurface
	channel *fakeChannel
	gateway *Gateway
	handler *Handler
}

func (s *ModerationTestSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := storage.Open("sqlite://:memory:", zerolog.Nop())
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = storage.Close(db) })

	s.blobs, err = storage.NewFileBlobStore(s.T().TempDir())
	s.Require().NoError(err)

	s.posts = storage.NewPostStore(db)
	s.worker = worker.New(s.posts, cache.NewMemoryLedger(), s.blobs, zerolog.Nop(), worker.Options{PollTimeout: 10 * time.Millisecond})
	s.worker.Start()

	s.surface = &fakeSurface{}
	s.channel = &fakeChannel{}
	s.gateway = NewGateway(s.surface, s.worker, zerolog.Nop())
	s.handler = NewHandler(s.posts, s.worker, s.blobs, s.surface, s.channel, zerolog.Nop())
}

func (s *ModerationTestSuite) TearDownTest() {
	s.Require().NoError(s.worker.Close())
}

func TestModerationTestSuite(t *testing.T) {
	suite.Run(t, new(ModerationTestSuite))
}

func candidate(url string) models.Candidate {
	return models.Candidate{Title: "📜 Paper", Description: "desc", Source: "📜 arXiv", URL: url, PublishedAt: time.Now()}
}

func (s *ModerationTestSuite) submit(url string, image []byte) (string, MessageRef) {
	id, err := s.gateway.Submit(s.ctx, candidate(url), models.Enriched{Text: "📌 <b>Новость</b>\n\nТекст", Image: image})
	s.Require().NoError(err)
	last := s.surface.nextID
	return id, MessageRef{ChatID: -100, MessageID: last}
}

func (s *ModerationTestSuite) press(data string, ref MessageRef, photo bool) {
	s.handler.Handle(s.ctx, Event{
		CallbackID: "cb-" + data,
		Data:       data,
		ChatID:     ref.ChatID,
		MessageID:  ref.MessageID,
		HasPhoto:   photo,
		Body:       "📌 Новость\n\nТекст",
	})
}

func (s *ModerationTestSuite) TestSubmitWithImage() {
	id, ref := s.submit("https://example.com/a", []byte("png"))

	s.Require().Len(s.surface.sent, 1)
	msg := s.surface.sent[0]
	s.Equal([]byte("png"), msg.photo)
	s.Equal("📌 <b>Новость</b>\n\nТекст", msg.text)
	s.Require().Len(msg.buttons, 2)
	s.Equal("approve:"+id, msg.buttons[0].Data)
	s.Equal("reject:"+id, msg.buttons[1].Data)

	post, err := s.posts.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, post.Status)
	s.Equal(ref.MessageID, post.ModerationMessageID)
	s.Require().NotNil(post.ImageRef)

	data, err := s.blobs.Get(s.ctx, *post.ImageRef)
	s.Require().NoError(err)
	s.Equal([]byte("png"), data)
}

func (s *ModerationTestSuite) TestSubmitSendFailurePersistsNothing() {
	s.surface.sendErr = errors.New("chat not found")

	_, err := s.gateway.Submit(s.ctx, candidate("https://example.com/a"), models.Enriched{Text: "x"})
	s.Require().Error(err)

	_, total, err := s.posts.List(s.ctx, storage.ListFilter{})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *ModerationTestSuite) TestSubmitDuplicateURL() {
	s.submit("https://example.com/a", nil)

	_, err := s.gateway.Submit(s.ctx, candidate("https://example.com/a"), models.Enriched{Text: "другой текст"})
	s.Require().ErrorIs(err, storage.ErrDuplicateURL)
	s.Require().Len(s.surface.unbuttons, 1)
	s.Equal(int64(2), s.surface.unbuttons[0].MessageID)
}

func (s *ModerationTestSuite) TestApprovePublishesPhoto() {
	id, ref := s.submit("https://example.com/a", []byte("png"))

	s.press("approve:"+id, ref, true)

	s.Require().Len(s.channel.posts, 1)
	pub := s.channel.posts[0]
	s.Equal([]byte("png"), pub.photo)
	s.Equal("📜 arXiv\n\n📌 <b>Новость</b>\n\nТекст\n\nhttps://example.com/a", pub.caption)

	s.Require().Len(s.surface.edits, 1)
	s.True(s.surface.edits[0].caption)
	s.Equal(ref, s.surface.edits[0].ref)
	s.Equal("✅ Published\n\n📌 Новость\n\nТекст", s.surface.edits[0].text)

	post, err := s.posts.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, post.Status)
	s.NotNil(post.DecidedAt)

	s.Equal(answer{id: "cb-approve:" + id, text: "Published"}, s.surface.lastAnswer())
}

func (s *ModerationTestSuite) TestApproveTwicePublishesOnce() {
	id, ref := s.submit("https://example.com/a", nil)

	s.press("approve:"+id, ref, false)
	s.surface.editErr = ErrNotModified
	s.press("approve:"+id, ref, false)

	s.Len(s.channel.posts, 1)
	s.Len(s.surface.edits, 1, "the second press leaves the marked text alone")
	s.Equal("Already published", s.surface.lastAnswer().text)
	s.False(s.surface.lastAnswer().alert)
}

func (s *ModerationTestSuite) TestConcurrentApprovalsPublishOnce() {
	id, ref := s.submit("https://example.com/a", nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.press("approve:"+id, ref, false)
		}()
	}
	wg.Wait()

	s.Len(s.channel.posts, 1)
	s.Len(s.surface.answers, 5)
}

func (s *ModerationTestSuite) TestApproveMissingImageFallsBackToText() {
	id, ref := s.submit("https://example.com/a", []byte("png"))

	post, err := s.posts.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NoError(s.blobs.Delete(s.ctx, *post.ImageRef))

	s.press("approve:"+id, ref, true)

	s.Require().Len(s.channel.posts, 1)
	s.Nil(s.channel.posts[0].photo)
	s.Contains(s.channel.posts[0].caption, "https://example.com/a")
}

func (s *ModerationTestSuite) TestPublishFailureKeepsPublishedStatus() {
	id, ref := s.submit("https://example.com/a", nil)
	s.channel.err = errors.New("bot is not a member of the channel")

	s.press("approve:"+id, ref, false)

	s.Equal(answer{id: "cb-approve:" + id, text: "Publish failed", alert: true}, s.surface.lastAnswer())
	s.Empty(s.surface.edits)

	post, err := s.posts.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, post.Status)

	s.channel.err = nil
	s.press("approve:"+id, ref, false)

	s.Equal("Already published", s.surface.lastAnswer().text)
	s.Empty(s.surface.edits, "the message is not marked as published")
	s.Empty(s.channel.posts)
	s.Equal([]MessageRef{ref}, s.surface.unbuttons)
}

func (s *ModerationTestSuite) TestReject() {
	id, ref := s.submit("https://example.com/a", nil)

	s.press("reject:"+id, ref, false)

	s.Empty(s.channel.posts)
	s.Require().Len(s.surface.edits, 1)
	s.False(s.surface.edits[0].caption)
	s.True(strings.HasPrefix(s.surface.edits[0].text, "❌ Rejected\n\n"))

	post, err := s.posts.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, post.Status)

	s.press("approve:"+id, ref, false)
	s.Empty(s.channel.posts)
	s.Equal("Already rejected", s.surface.lastAnswer().text)
}

func (s *ModerationTestSuite) TestUnknownPost() {
	s.press("approve:post-1-deadbeef", MessageRef{ChatID: -100, MessageID: 9}, false)

	s.Equal(answer{id: "cb-approve:post-1-deadbeef", text: "Post not found", alert: true}, s.surface.lastAnswer())
	s.Empty(s.channel.posts)
	s.Empty(s.surface.edits)
}

func (s *ModerationTestSuite) TestInvalidCallback() {
	s.press("delete:post-1", MessageRef{ChatID: -100, MessageID: 9}, false)

	s.Equal(answer{id: "cb-delete:post-1", text: "Invalid action", alert: true}, s.surface.lastAnswer())
}

func (s *ModerationTestSuite) TestEditFailureIsNotFatal() {
	id, ref := s.submit("https://example.com/a", nil)
	s.surface.editErr = errors.New("message to edit not found")

	s.press("reject:"+id, ref, false)

	s.Equal("Rejected", s.surface.lastAnswer().text)
	s.Len(s.surface.unbuttons, 1)
}

func TestTruncateHTML(t *testing.T) {
	short := "<b>ok</b>"
	assert.Equal(t, short, TruncateHTML(short, 100))

	got := TruncateHTML("<b>"+strings.Repeat("a", 50)+"</b> tail", 20)
	assert.Equal(t, "<b>"+strings.Repeat("a", 12)+"…</b>", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 20)

	assert.Equal(t, "Tom …", TruncateHTML("Tom &amp; Jerry", 8))

	nested := TruncateHTML(`<a href="https://x.io"><i>`+strings.Repeat("я", 40)+"</i></a>", 40)
	assert.True(t, strings.HasSuffix(nested, "…</i></a>"), nested)
	assert.LessOrEqual(t, utf8.RuneCountInString(nested), 40)
}

func TestChannelPostKeepsSourceAndURL(t *testing.T) {
	post := &models.Post{Source: "🔬 MIT Tech Review", Text: "<b>" + strings.Repeat("x", 2000) + "</b>", URL: "https://example.com/a?b=1&c=2"}

	got := ChannelPost(post, MaxChannelCaption)
	require.LessOrEqual(t, utf8.RuneCountInString(got), MaxChannelCaption)
	assert.True(t, strings.HasPrefix(got, "🔬 MIT Tech Review\n\n<b>x"))
	assert.True(t, strings.HasSuffix(got, "</b>\n\nhttps://example.com/a?b=1&amp;c=2"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "📌 A & B\n\nc", PlainText("📌 <b>A &amp; B</b>\n\n<i>c</i>"))
}
