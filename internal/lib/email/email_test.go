package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_AllTemplatesRenderWithPreviewData(t *testing.T) {
	r := MustNewRenderer()

	for name := range Templates {
		t.Run(string(name), func(t *testing.T) {
			data, ok := PreviewData[name]
			require.True(t, ok, "missing preview data")

			out, err := r.Render(name, data)
			require.NoError(t, err)
			assert.NotEmpty(t, out.Subject)
			assert.Contains(t, out.HTML, "<!DOCTYPE html>")
			assert.NotContains(t, out.HTML, "<no value>")
		})
	}
}

func TestRenderer_EscapesData(t *testing.T) {
	out, err := MustNewRenderer().Render(TemplateWelcome, map[string]any{
		"FirstName":   "<script>alert(1)</script>",
		"CourseTitle": "Go & You",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to Go & You", out.Subject)
	assert.Contains(t, out.HTML, "Go &amp; You")
	assert.NotContains(t, out.HTML, "<script>")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	_, err := MustNewRenderer().Render("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestClient_SendEmail(t *testing.T) {
	var out bytes.Buffer
	sender := NewConsoleSender(&out, "Acme", "no-reply@acme.test")
	logger := zerolog.Nop()
	client := NewClientWithSender(sender, MustNewRenderer(), &logger)

	id, err := client.SendEmail(context.Background(), "msg-1", "ada@example.com", TemplateWelcome, PreviewData[TemplateWelcome])
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "msg-1", sent[0].ID)
	assert.Equal(t, "Welcome to Intro to Go", sent[0].Subject)
	assert.Contains(t, out.String(), "To: ada@example.com")
	assert.Equal(t, "console", client.Provider())
}

func TestPreferences_Allows(t *testing.T) {
	def := DefaultPreferences()

	assert.True(t, def.Allows(CategoryTransactional))
	assert.False(t, def.Allows(CategoryMarketing))
	assert.True(t, def.Allows(CategoryCourseUpdates))
	assert.True(t, def.Allows(CategoryLiveClassReminders))
	assert.True(t, def.Allows(CategorySupportUpdates))

	none := Preferences{}
	assert.True(t, none.Allows(CategoryTransactional), "transactional mail ignores preferences")
	assert.False(t, none.Allows(CategorySupportUpdates))
	assert.False(t, none.Allows("unknown"))
}

func TestCategory_Queue(t *testing.T) {
	assert.Equal(t, "critical", CategoryTransactional.Queue())
	assert.Equal(t, "low", CategoryMarketing.Queue())
	assert.Equal(t, "default", CategorySupportUpdates.Queue())
}

func TestStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusSent, true},
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusOpened, true},
		{StatusDelivered, StatusOpened, true},
		{StatusOpened, StatusClicked, true},
		{StatusClicked, StatusOpened, false},
		{StatusOpened, StatusDelivered, false},
		{StatusDelivered, StatusDelivered, false},
		{StatusDelivered, StatusBounced, true},
		{StatusClicked, StatusComplained, true},
		{StatusBounced, StatusDelivered, false},
		{StatusComplained, StatusBounced, false},
		{StatusSuppressed, StatusSent, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanAdvanceTo(tc.to))
		})
	}
}

func TestComputeAnalytics(t *testing.T) {
	a := ComputeAnalytics(map[Status]int64{
		StatusQueued:     2,
		StatusSuppressed: 3,
		StatusSent:       10,
		StatusDelivered:  40,
		StatusOpened:     30,
		StatusClicked:    10,
		StatusBounced:    8,
		StatusComplained: 2,
	})

	// sent-or-later = 10 + (40+30+10+2) + 8 = 100
	// delivered-or-later = 82, opened-or-later = 40
	assert.Equal(t, int64(105), a.Total)
	assert.Equal(t, 0.82, a.DeliveryRate)
	assert.Equal(t, 0.4878, a.OpenRate)
	assert.Equal(t, 0.25, a.ClickRate)
	assert.Equal(t, 0.08, a.BounceRate)
	assert.Equal(t, int64(0), a.Counts[StatusFailed])
}

func TestComputeAnalytics_Empty(t *testing.T) {
	a := ComputeAnalytics(nil)
	assert.Zero(t, a.Total)
	assert.Zero(t, a.DeliveryRate)
	assert.Zero(t, a.OpenRate)
	assert.Zero(t, a.ClickRate)
	assert.Zero(t, a.BounceRate)
}
