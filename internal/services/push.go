package services

import (
	"context"
	"fmt"

	"transitwatch/internal/catalog"
	"transitwatch/internal/config"
	"transitwatch/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"google.golang.org/api/option"
)

const maxPushBodyRunes = 120

// PushMessage is a platform-neutral notification
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers a notification to one device
type Pusher interface {
	Push(ctx context.Context, deviceToken string, msg PushMessage) error
}

// SubscriberLister finds the devices interested in a line
type SubscriberLister interface {
	ListLineSubscribers(ctx context.Context, lineID, excludeUserID string) ([]*models.PushToken, error)
}

// PushNotifier tells users about new reports on the lines they follow
type PushNotifier struct {
	subscribers SubscriberLister
	pushers     map[models.PushPlatform]Pusher
}

// NewPushNotifier creates a notifier. Platforms without a pusher are skipped.
func NewPushNotifier(subscribers SubscriberLister, pushers map[models.PushPlatform]Pusher) *PushNotifier {
	return &PushNotifier{
		subscribers: subscribers,
		pushers:     pushers,
	}
}

// NotifyNewReport pushes report to every follower of its line except the
// author. Delivery failures are logged only.
func (n *PushNotifier) NotifyNewReport(ctx context.Context, report *models.Report) {
	tokens, err := n.subscribers.ListLineSubscribers(ctx, report.LineID, report.UserID)
	if err != nil {
		log.Error().Err(err).Str("report_id", report.ID).Msg("Failed to list line subscribers")
		return
	}

	msg := newReportMessage(report)
	sent := 0
	for _, t := range tokens {
		pusher, ok := n.pushers[t.Platform]
		if !ok {
			log.Debug().Str("user_id", t.UserID).Str("platform", string(t.Platform)).Msg("No pusher for platform")
			continue
		}
		if err := pusher.Push(ctx, t.Token, msg); err != nil {
			log.Error().
				Err(err).
				Str("user_id", t.UserID).
				Str("report_id", report.ID).
				Msg("Failed to push report notification")
			continue
		}
		sent++
	}

	log.Info().
		Str("report_id", report.ID).
		Int("subscribers", len(tokens)).
		Int("sent", sent).
		Msg("Report notifications sent")
}

func newReportMessage(report *models.Report) PushMessage {
	title := string(report.Type)
	if rt, ok := catalog.ReportType(report.Type); ok {
		title = rt.Label
	}
	if report.LineName != "" {
		title += " · " + report.LineName
	}

	body := []rune(report.Description)
	if len(body) > maxPushBodyRunes {
		body = append(body[:maxPushBodyRunes-1], '…')
	}

	return PushMessage{
		Title: title,
		Body:  string(body),
		Data: map[string]string{
			"report_id": report.ID,
			"line_id":   report.LineID,
			"city_id":   report.CityID,
			"type":      string(report.Type),
		},
	}
}

// APNsPusher delivers to iOS devices
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher loads the push certificate and creates an APNs client
func NewAPNsPusher(cfg config.APNsConfig) (*APNsPusher, error) {
	cert, err := certificate.FromP12File(cfg.CertFile, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert).Development()
	if cfg.Production {
		client = client.Production()
	}

	return &APNsPusher{client: client, topic: cfg.Topic}, nil
}

// Push sends msg to an iOS device
func (p *APNsPusher) Push(ctx context.Context, deviceToken string, msg PushMessage) error {
	res, err := p.client.PushWithContext(ctx, apnsNotification(p.topic, deviceToken, msg))
	if err != nil {
		return fmt.Errorf("failed to push to APNs: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("APNs rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

func apnsNotification(topic, deviceToken string, msg PushMessage) *apns2.Notification {
	p := payload.NewPayload().
		AlertTitle(msg.Title).
		AlertBody(msg.Body).
		Sound("default")
	for k, v := range msg.Data {
		p.Custom(k, v)
	}

	return &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       topic,
		Payload:     p,
	}
}

// FCMPusher delivers to Android devices through Firebase Cloud Messaging
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher initializes the Firebase app and its messaging client
func NewFCMPusher(ctx context.Context, cfg config.FirebaseConfig) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Messaging client: %w", err)
	}

	return &FCMPusher{client: client}, nil
}

// Push sends msg to an Android device
func (p *FCMPusher) Push(ctx context.Context, deviceToken string, msg PushMessage) error {
	if _, err := p.client.Send(ctx, fcmMessage(deviceToken, msg)); err != nil {
		return fmt.Errorf("failed to push to FCM: %w", err)
	}
	return nil
}

func fcmMessage(deviceToken string, msg PushMessage) *messaging.Message {
	return &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}
}
