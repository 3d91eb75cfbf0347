package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/filestore"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

// GatewayNotifier sends WhatsApp messages through an HTTP gateway.
type GatewayNotifier struct {
	baseURL string
	token   string
	files   filestore.FileStore
	client  *http.Client
}

// NewGatewayNotifier creates a notifier for the gateway at baseURL.
func NewGatewayNotifier(baseURL, token string, files filestore.FileStore) *GatewayNotifier {
	return &GatewayNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		files:   files,
		client:  &http.Client{},
	}
}

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type gatewayResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Send posts a text message.
func (g *GatewayNotifier) Send(ctx context.Context, address, text string) error {
	body, err := json.Marshal(sendMessageRequest{Phone: WhatsAppNumber(address), Message: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send-message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

// SendMedia uploads file as multipart form data with a caption.
func (g *GatewayNotifier) SendMedia(ctx context.Context, address string, file model.Attachment, caption string) error {
	if g.files == nil {
		return fmt.Errorf("no file store configured")
	}
	rc, err := g.files.Open(file)
	if err != nil {
		return err
	}
	defer rc.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("phone", WhatsAppNumber(address))
	_ = mw.WriteField("caption", caption)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send-media", &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return g.do(req)
}

func (g *GatewayNotifier) do(req *http.Request) error {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gr gatewayResponse
	if len(body) > 0 && json.Unmarshal(body, &gr) == nil && gr.Success != nil && !*gr.Success {
		return fmt.Errorf("gateway rejected message: %s", gr.Message)
	}
	return nil
}

// WhatsAppNumber converts a participant number to the international form
// the gateway expects: digits only, Indonesian numbers prefixed with 62.
func WhatsAppNumber(address string) string {
	n := strings.TrimPrefix(validate.NormalizePhone(address), "+")
	if strings.HasPrefix(n, "0") {
		n = "62" + n[1:]
	}
	return n
}
