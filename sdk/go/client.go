package campaignlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Campaignline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// CampaignSlot is a slot as configured on the campaign. Number 0 is the standard
// slot, 1-4 are challenge weeks.
type CampaignSlot struct {
	Number         int    `json:"number"`
	VideoDeadline  string `json:"video_deadline,omitempty"`
	SNSDeadline    string `json:"sns_deadline,omitempty"`
	GuideDriveURL  string `json:"guide_drive_url,omitempty"`
	GuideSlidesURL string `json:"guide_slides_url,omitempty"`
}

type Campaign struct {
	ID                 string         `json:"id,omitempty"`
	Title              string         `json:"title"`
	Type               string         `json:"campaign_type,omitempty"`
	RewardAmount       int64          `json:"reward_amount,omitempty"`
	RequiresCleanVideo bool           `json:"requires_clean_video,omitempty"`
	RequiresAdCode     bool           `json:"requires_ad_code,omitempty"`
	TargetPlatforms    []string       `json:"target_platforms,omitempty"`
	Slots              []CampaignSlot `json:"slots,omitempty"`
}

type ApplicationSlot struct {
	Number          int    `json:"number"`
	State           string `json:"state"`
	VideoURL        string `json:"video_url,omitempty"`
	CleanVideoURL   string `json:"clean_video_url,omitempty"`
	SNSURL          string `json:"sns_url,omitempty"`
	PartnershipCode string `json:"partnership_code,omitempty"`
}

// Application represents the API application model (partial).
type Application struct {
	ID              string            `json:"id"`
	CampaignID      string            `json:"campaign_id"`
	UserID          string            `json:"user_id"`
	Status          string            `json:"status"`
	MainChannel     string            `json:"main_channel,omitempty"`
	CustomDeadlines map[string]string `json:"custom_deadlines,omitempty"`
	Slots           []ApplicationSlot `json:"slots"`
	Revision        int               `json:"revision"`
}

type Submission struct {
	ID          string `json:"id"`
	Slot        int    `json:"slot"`
	Track       string `json:"track"`
	Version     int    `json:"version"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadResult struct {
	Submission  Submission  `json:"submission"`
	Application Application `json:"application"`
}

type Deadline struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source"`
}

type SlotProgress struct {
	Number          int      `json:"number"`
	State           string   `json:"state"`
	HasGuide        bool     `json:"has_guide"`
	VideoDeadline   Deadline `json:"video_deadline"`
	SNSDeadline     Deadline `json:"sns_deadline"`
	CanStartFilming bool     `json:"can_start_filming"`
	CanUpload       bool     `json:"can_upload"`
	CanSubmitSNS    bool     `json:"can_submit_sns"`
}

// Progress is the creator-facing projection of an application.
type Progress struct {
	ApplicationID string         `json:"application_id"`
	Status        string         `json:"status"`
	Step          int            `json:"step"`
	RevisionCount int            `json:"revision_count"`
	Slots         []SlotProgress `json:"slots"`
}

type RevisionRequest struct {
	ID                string `json:"id"`
	Slot              int    `json:"slot"`
	Comment           string `json:"comment"`
	CommentTranslated string `json:"comment_translated,omitempty"`
	AuthorID          string `json:"author_id"`
	CreatedAt         string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	CampaignID string         `json:"campaign_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// SNSPost is the published post for a slot. CleanVideo is optional.
type SNSPost struct {
	URL             string
	PartnershipCode string
	CleanVideoName  string
	CleanVideo      io.Reader
}

// APIError wraps non-2xx responses. Code and Message are filled from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCampaign creates a campaign.
func (c *Client) CreateCampaign(ctx context.Context, campaign Campaign) (Campaign, error) {
	var resp Campaign
	err := c.do(ctx, http.MethodPost, "campaigns", campaign, &resp)
	return resp, err
}

// GetCampaign fetches a campaign by id.
func (c *Client) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	var resp Campaign
	err := c.do(ctx, http.MethodGet, "campaigns/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Apply submits an application for the authenticated creator.
func (c *Client) Apply(ctx context.Context, campaignID, mainChannel string) (Application, error) {
	body := map[string]any{"main_channel": mainChannel}
	var resp Application
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("campaigns/%s/applications", url.PathEscape(campaignID)), body, &resp)
	return resp, err
}

// MyApplications lists the authenticated creator's applications.
func (c *Client) MyApplications(ctx context.Context) ([]Application, error) {
	var resp struct {
		Items []Application `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "me/applications", nil, &resp)
	return resp.Items, err
}

// GetApplication fetches an application by id.
func (c *Client) GetApplication(ctx context.Context, id string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodGet, "applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ApproveApplication selects the creator. weeks may be empty.
func (c *Client) ApproveApplication(ctx context.Context, id string, weeks []int) (Application, error) {
	body := map[string]any{}
	if len(weeks) > 0 {
		body["slots"] = weeks
	}
	var resp Application
	err := c.do(ctx, http.MethodPost, c.applicationPath(id, "approve"), body, &resp)
	return resp, err
}

// RejectApplication rejects a pending application.
func (c *Client) RejectApplication(ctx context.Context, id, reason string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, c.applicationPath(id, "reject"), map[string]any{"reason": reason}, &resp)
	return resp, err
}

// CancelApplication cancels a selected application.
func (c *Client) CancelApplication(ctx context.Context, id, reason string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, c.applicationPath(id, "cancel"), map[string]any{"reason": reason}, &resp)
	return resp, err
}

// SetDeadline overrides a deadline; an empty value clears it.
func (c *Client) SetDeadline(ctx context.Context, id, key, value string) (Application, error) {
	var resp Application
	endpoint := c.applicationPath(id, "deadlines/"+url.PathEscape(key))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"value": value}, &resp)
	return resp, err
}

// Progress returns the creator-facing view of an application.
func (c *Client) Progress(ctx context.Context, id string) (Progress, error) {
	var resp Progress
	err := c.do(ctx, http.MethodGet, c.applicationPath(id, "progress"), nil, &resp)
	return resp, err
}

// StartFilming moves a slot from selected to filming.
func (c *Client) StartFilming(ctx context.Context, id string, slot int) (Application, error) {
	return c.slotAction(ctx, id, slot, "film", nil)
}

// ApproveVideo approves the submitted video of a slot.
func (c *Client) ApproveVideo(ctx context.Context, id string, slot int) (Application, error) {
	return c.slotAction(ctx, id, slot, "approve", nil)
}

// RequestRevision sends the submitted video back with a comment.
func (c *Client) RequestRevision(ctx context.Context, id string, slot int, comment, translated string) (Application, error) {
	body := map[string]any{"comment": comment}
	if translated != "" {
		body["comment_translated"] = translated
	}
	return c.slotAction(ctx, id, slot, "revise", body)
}

// Finalize closes a slot after the post is confirmed.
func (c *Client) Finalize(ctx context.Context, id string, slot int) (Application, error) {
	return c.slotAction(ctx, id, slot, "finalize", nil)
}

// Revisions lists revision requests, translated into lang when given.
func (c *Client) Revisions(ctx context.Context, id, lang string) ([]RevisionRequest, error) {
	endpoint := c.applicationPath(id, "revisions")
	if lang != "" {
		endpoint += "?lang=" + url.QueryEscape(lang)
	}
	var resp []RevisionRequest
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UploadVideo streams a video version. size may be -1 when unknown.
func (c *Client) UploadVideo(ctx context.Context, id string, slot int, fileName string, size int64, body io.Reader) (UploadResult, error) {
	endpoint := fmt.Sprintf("%s?file_name=%s", c.slotPath(id, slot, "video"), url.QueryEscape(fileName))
	req, err := c.newRequest(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return UploadResult{}, err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	var resp UploadResult
	err = c.send(req, &resp)
	return resp, err
}

// SubmitSNS posts the published link, the partnership code and an optional clean
// video as a streamed multipart form.
func (c *Client) SubmitSNS(ctx context.Context, id string, slot int, post SNSPost) (Application, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSNSForm(mw, post))
	}()
	req, err := c.newRequest(ctx, http.MethodPost, c.slotPath(id, slot, "sns"), pr)
	if err != nil {
		pr.Close()
		return Application{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp Application
	err = c.send(req, &resp)
	pr.Close()
	return resp, err
}

func writeSNSForm(mw *multipart.Writer, post SNSPost) error {
	if err := mw.WriteField("sns_url", post.URL); err != nil {
		return err
	}
	if post.PartnershipCode != "" {
		if err := mw.WriteField("partnership_code", post.PartnershipCode); err != nil {
			return err
		}
	}
	if post.CleanVideo != nil {
		part, err := mw.CreateFormFile("clean_video", post.CleanVideoName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, post.CleanVideo); err != nil {
			return err
		}
	}
	return mw.Close()
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) slotAction(ctx context.Context, id string, slot int, action string, body any) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, c.slotPath(id, slot, action), body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, method, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Details = envelope.Error.Details
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) applicationPath(id, p string) string {
	return fmt.Sprintf("applications/%s/%s", url.PathEscape(id), strings.TrimLeft(p, "/"))
}

func (c *Client) slotPath(id string, slot int, action string) string {
	return c.applicationPath(id, fmt.Sprintf("slots/%d/%s", slot, action))
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
