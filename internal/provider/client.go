package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Document type tags. The liveness tag triggers the provider's active
// liveness analysis (look left, blink, look right) as a side effect of the
// upload itself.
const (
	docTypeSelfie         = "SELFIE"
	docTypeLivenessSelfie = "VIDEO_SELFIE"

	// SideFront and SideBack select the document side in the upload metadata;
	// both sides hit the same endpoint.
	SideFront = "FRONT_SIDE"
	SideBack  = "BACK_SIDE"
)

// ApplicantStatus is the provider's view of one verification subject.
type ApplicantStatus struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	ReviewStatus string   `json:"reviewStatus"`
	Reviews      []Review `json:"reviews"`
}

// Review is a single provider review entry.
type Review struct {
	ReviewType   string `json:"reviewType"`
	ReviewStatus string `json:"reviewStatus"`
}

// Client performs the remote verification operations over the provider's
// signed HTTP protocol.
type Client struct {
	baseURL   string
	levelName string
	signer    *Signer
	httpc     *http.Client
	logger    *slog.Logger
}

// NewClient constructs a provider client. The timeout bounds every round
// trip; a timed-out call surfaces as a transport error.
func NewClient(baseURL, levelName string, signer *Signer, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		levelName: levelName,
		signer:    signer,
		httpc:     &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// response is the outcome of one signed round trip.
type response struct {
	status    int
	header    http.Header
	body      []byte
	timestamp string
}

// CreateApplicant registers a verification subject under the configured level
// and returns the provider's applicant identifier.
func (c *Client) CreateApplicant(ctx context.Context, externalRef string) (string, error) {
	body, err := json.Marshal(map[string]string{"externalUserId": externalRef})
	if err != nil {
		return "", err
	}

	path := "/resources/applicants?levelName=" + url.QueryEscape(c.levelName)
	resp, err := c.do(ctx, "createApplicant", http.MethodPost, path, body, "")
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", c.classify("createApplicant", path, resp, len(body))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", &Error{Kind: KindDomain, Op: "createApplicant", StatusCode: resp.status, Body: string(resp.body), Err: err}
	}
	return out.ID, nil
}

// UploadSelfie submits a selfie image for the applicant. A liveness upload
// uses the dedicated document-type tag so the provider runs its active
// liveness checks on it.
func (c *Client) UploadSelfie(ctx context.Context, applicantID string, image []byte, liveness bool) (string, error) {
	docType := docTypeSelfie
	if liveness {
		docType = docTypeLivenessSelfie
	}
	metadata, err := json.Marshal(map[string]string{"idDocType": docType})
	if err != nil {
		return "", err
	}
	return c.uploadImage(ctx, "uploadSelfie", applicantID, "selfie.jpg", image, metadata)
}

// UploadDocumentSide submits one side of an identity document. The side is
// encoded in the metadata, not the path.
func (c *Client) UploadDocumentSide(ctx context.Context, applicantID string, image []byte, docType, country, side string) (string, error) {
	metadata, err := json.Marshal(map[string]string{
		"idDocType":    docType,
		"country":      country,
		"idDocSubType": side,
	})
	if err != nil {
		return "", err
	}
	filename := "front.jpg"
	if side == SideBack {
		filename = "back.jpg"
	}
	return c.uploadImage(ctx, "uploadDocumentSide", applicantID, filename, image, metadata)
}

// FetchApplicantStatus reads the applicant's current status. It never mutates
// remote state and is safe to retry.
func (c *Client) FetchApplicantStatus(ctx context.Context, applicantID string) (ApplicantStatus, error) {
	path := "/resources/applicants/" + applicantID
	resp, err := c.do(ctx, "fetchApplicantStatus", http.MethodGet, path, nil, "")
	if err != nil {
		return ApplicantStatus{}, err
	}
	if resp.status != http.StatusOK {
		return ApplicantStatus{}, c.classify("fetchApplicantStatus", path, resp, 0)
	}

	var out ApplicantStatus
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return ApplicantStatus{}, &Error{Kind: KindDomain, Op: "fetchApplicantStatus", StatusCode: resp.status, Body: string(resp.body), Err: err}
	}
	return out, nil
}

// IssueAccessToken generates an SDK hand-off token for the given external
// reference. Independent of any session phase.
func (c *Client) IssueAccessToken(ctx context.Context, externalRef string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"userId":    externalRef,
		"levelName": c.levelName,
	})
	if err != nil {
		return "", err
	}

	path := "/resources/accessTokens/sdk"
	resp, err := c.do(ctx, "issueAccessToken", http.MethodPost, path, body, "")
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", c.classify("issueAccessToken", path, resp, len(body))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", &Error{Kind: KindDomain, Op: "issueAccessToken", StatusCode: resp.status, Body: string(resp.body), Err: err}
	}
	return out.Token, nil
}

func (c *Client) uploadImage(ctx context.Context, op, applicantID, filename string, image, metadata []byte) (string, error) {
	form, err := encodeImageForm(filename, image, metadata)
	if err != nil {
		return "", err
	}

	path := "/resources/applicants/" + applicantID + "/info/idDoc"
	resp, err := c.do(ctx, op, http.MethodPost, path, form.bytes, form.contentType)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return "", c.classify(op, path, resp, len(form.bytes))
	}

	imageID := resp.header.Get("X-Image-Id")
	if imageID == "" {
		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp.body, &out); err == nil {
			imageID = out.ID
		}
	}
	return imageID, nil
}

// do signs and executes one round trip. The exact body bytes passed in are
// hashed into the signature and then transmitted unchanged; multipartType
// carries the serializer's Content-Type (with boundary) for multipart calls.
func (c *Client) do(ctx context.Context, op, method, pathWithQuery string, body []byte, multipartType string) (response, error) {
	signed := c.signer.Sign(method, pathWithQuery, body, multipartType != "")

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathWithQuery, bytes.NewReader(body))
	if err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	for k, v := range signed.Header {
		req.Header.Set(k, v)
	}
	if multipartType != "" {
		req.Header.Set("Content-Type", multipartType)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return response{status: resp.StatusCode, header: resp.Header, body: raw, timestamp: signed.Timestamp}, nil
}

// classify turns a non-2xx response into a typed error. A 401 means the
// request signature was rejected, so log enough context to debug the signing
// protocol rather than chasing a transient fault.
func (c *Client) classify(op, path string, resp response, bodyLen int) error {
	if resp.status == http.StatusUnauthorized {
		if c.logger != nil {
			c.logger.Error("provider rejected request signature",
				slog.String("op", op),
				slog.String("path", path),
				slog.String("timestamp", resp.timestamp),
				slog.Int("body_length", bodyLen),
			)
		}
		return &Error{Kind: KindAuth, Op: op, StatusCode: resp.status, Body: string(resp.body)}
	}
	return &Error{Kind: KindDomain, Op: op, StatusCode: resp.status, Body: string(resp.body)}
}
