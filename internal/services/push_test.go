package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"transitwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushNotifier_NotifyNewReport(t *testing.T) {
	ctx := context.Background()
	profiles := newFakeProfiles()

	follow := func(id string, lines []string, notifications bool, token string, platform models.PushPlatform) {
		profiles.users[id] = models.User{ID: id, PreferredLines: lines, Notifications: notifications}
		if token != "" {
			profiles.tokens[id] = models.PushToken{UserID: id, Token: token, Platform: platform}
		}
	}
	follow("author", []string{"line-1"}, true, "tok-author", models.PlatformIOS)
	follow("ios-fan", []string{"line-1", "line-2"}, true, "tok-ios", models.PlatformIOS)
	follow("android-fan", []string{"line-1"}, true, "tok-android", models.PlatformAndroid)
	follow("muted", []string{"line-1"}, false, "tok-muted", models.PlatformIOS)
	follow("other-line", []string{"line-3"}, true, "tok-other", models.PlatformAndroid)
	follow("no-device", []string{"line-1"}, true, "", "")

	ios := &fakePusher{}
	android := &fakePusher{}
	notifier := NewPushNotifier(profiles, map[models.PushPlatform]Pusher{
		models.PlatformIOS:     ios,
		models.PlatformAndroid: android,
	})

	report := &models.Report{
		ID:          "r1",
		UserID:      "author",
		CityID:      "brazzaville",
		LineID:      "line-1",
		LineName:    "Ligne 1 - Centre-ville → Bacongo",
		Type:        models.ReportBreakdown,
		Description: "Bus en panne au rond-point",
	}
	notifier.NotifyNewReport(ctx, report)

	require.Len(t, ios.sent, 1)
	assert.Equal(t, "tok-ios", ios.sent[0].token)
	require.Len(t, android.sent, 1)
	assert.Equal(t, "tok-android", android.sent[0].token)

	msg := ios.sent[0].msg
	assert.Equal(t, "Panne · Ligne 1 - Centre-ville → Bacongo", msg.Title)
	assert.Equal(t, "Bus en panne au rond-point", msg.Body)
	assert.Equal(t, "r1", msg.Data["report_id"])
	assert.Equal(t, "breakdown", msg.Data["type"])
}

func TestPushNotifier_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("pusher failure does not stop others", func(t *testing.T) {
		profiles := newFakeProfiles()
		for _, id := range []string{"a", "b"} {
			profiles.users[id] = models.User{ID: id, PreferredLines: []string{"line-4"}, Notifications: true}
			profiles.tokens[id] = models.PushToken{UserID: id, Token: "tok-" + id, Platform: models.PlatformAndroid}
		}
		pusher := &fakePusher{failOn: "tok-a"}
		notifier := NewPushNotifier(profiles, map[models.PushPlatform]Pusher{models.PlatformAndroid: pusher})

		notifier.NotifyNewReport(ctx, &models.Report{ID: "r", LineID: "line-4", Type: models.ReportOther})
		require.Len(t, pusher.sent, 1)
		assert.Equal(t, "tok-b", pusher.sent[0].token)
	})

	t.Run("platform without pusher is skipped", func(t *testing.T) {
		profiles := newFakeProfiles()
		profiles.users["a"] = models.User{ID: "a", PreferredLines: []string{"line-4"}, Notifications: true}
		profiles.tokens["a"] = models.PushToken{UserID: "a", Token: "tok-a", Platform: models.PlatformIOS}
		notifier := NewPushNotifier(profiles, nil)

		assert.NotPanics(t, func() {
			notifier.NotifyNewReport(ctx, &models.Report{ID: "r", LineID: "line-4", Type: models.ReportOther})
		})
	})

	t.Run("lookup failure", func(t *testing.T) {
		profiles := newFakeProfiles()
		profiles.listErr = errors.New("db down")
		pusher := &fakePusher{}
		notifier := NewPushNotifier(profiles, map[models.PushPlatform]Pusher{models.PlatformIOS: pusher})

		notifier.NotifyNewReport(ctx, &models.Report{ID: "r", LineID: "line-4"})
		assert.Empty(t, pusher.sent)
	})
}

func TestNewReportMessageTruncatesBody(t *testing.T) {
	report := &models.Report{Type: models.ReportOvercrowded, Description: strings.Repeat("é", 300)}
	msg := newReportMessage(report)

	assert.Equal(t, "Surcharge", msg.Title)
	assert.Len(t, []rune(msg.Body), maxPushBodyRunes)
	assert.True(t, strings.HasSuffix(msg.Body, "…"))
}

func TestAPNsNotification(t *testing.T) {
	n := apnsNotification("app.transitwatch", "device-1", PushMessage{
		Title: "Panne",
		Body:  "Bus en panne",
		Data:  map[string]string{"report_id": "r1"},
	})

	assert.Equal(t, "device-1", n.DeviceToken)
	assert.Equal(t, "app.transitwatch", n.Topic)

	raw, err := json.Marshal(n.Payload)
	require.NoError(t, err)

	var decoded struct {
		APS struct {
			Alert struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"alert"`
			Sound string `json:"sound"`
		} `json:"aps"`
		ReportID string `json:"report_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Panne", decoded.APS.Alert.Title)
	assert.Equal(t, "Bus en panne", decoded.APS.Alert.Body)
	assert.Equal(t, "default", decoded.APS.Sound)
	assert.Equal(t, "r1", decoded.ReportID)
}

func TestFCMMessage(t *testing.T) {
	m := fcmMessage("device-2", PushMessage{Title: "Prix abusif", Body: "1000 FCFA", Data: map[string]string{"line_id": "line-5"}})

	assert.Equal(t, "device-2", m.Token)
	require.NotNil(t, m.Notification)
	assert.Equal(t, "Prix abusif", m.Notification.Title)
	assert.Equal(t, "1000 FCFA", m.Notification.Body)
	assert.Equal(t, "line-5", m.Data["line_id"])
}
