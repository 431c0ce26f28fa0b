package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"transitwatch/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ImageUpload is a presigned upload slot for one report photo
type ImageUpload struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

type feedMessage struct {
	Type    string          `json:"type"`
	Reports []models.Report `json:"reports"`
	Message string          `json:"message"`
}

// ListReports fetches the whole report collection, newest first
func (c *Client) ListReports(ctx context.Context) ([]models.Report, error) {
	var resp struct {
		Reports []models.Report `json:"reports"`
	}
	if err := c.do(ctx, http.MethodGet, "/reports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

// CreateReport submits a new report as the signed-in user
func (c *Client) CreateReport(ctx context.Context, data models.NewReport) (*models.Report, error) {
	var report models.Report
	if err := c.do(ctx, http.MethodPost, "/reports", data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// DeleteReport deletes a report by ID
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/reports/"+url.PathEscape(id), nil, nil)
}

// RequestImageUpload asks for a presigned URL to upload a report photo
func (c *Client) RequestImageUpload(ctx context.Context, contentType string) (*ImageUpload, error) {
	var upload ImageUpload
	if err := c.do(ctx, http.MethodPost, "/reports/images", map[string]string{"content_type": contentType}, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// UploadImage uploads a photo and returns the URL to put in a report
func (c *Client) UploadImage(ctx context.Context, contentType string, body io.Reader) (string, error) {
	upload, err := c.RequestImageUpload(ctx, contentType)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.UploadURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("image upload rejected with status %d", resp.StatusCode)
	}
	return upload.ImageURL, nil
}

// SubscribeReports opens the live feed. The channel yields the full
// collection, newest first, on connect and after every change. It is
// closed when ctx is done or the connection drops.
func (c *Client) SubscribeReports(ctx context.Context) (<-chan []models.Report, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/ws/reports"

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to report feed: %w", err)
	}

	out := make(chan []models.Report)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()

		for {
			var msg feedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Msg("Report feed disconnected")
				}
				return
			}

			switch msg.Type {
			case "snapshot":
				if msg.Reports == nil {
					msg.Reports = []models.Report{}
				}
				select {
				case out <- msg.Reports:
				case <-ctx.Done():
					return
				}
			case "error":
				log.Error().Str("message", msg.Message).Msg("Report feed error")
			}
		}
	}()

	return out, nil
}
