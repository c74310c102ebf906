package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
	"campaignline/internal/lifecycle"
	"campaignline/internal/media"
	"campaignline/internal/repo"
)

var errNoMedia = errors.New("media store not configured")

// Upload is a file streamed from the client. Size is -1 when unknown.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult is the stored version and the application after the transition.
type UploadResult struct {
	Submission  domain.VideoSubmission `json:"submission"`
	Application domain.Application     `json:"application"`
}

// stagedBlob is a blob written to storage but not yet recorded.
type stagedBlob struct {
	// id names the submission and appears in every key this blob is stored under.
	id      string
	track   string
	version int
	ext     string
	object  media.Object
	upload  Upload
}

func (e Engine) policy() media.Policy {
	return media.Policy{MaxBytes: e.Config.Uploads.MaxBytes, Extensions: e.Config.Uploads.Extensions}
}

// checkUpload validates file metadata before anything touches storage.
func (e Engine) checkUpload(field string, up Upload) (string, error) {
	if up.Body == nil {
		return "", required(field)
	}
	if strings.TrimSpace(up.FileName) == "" {
		return "", required("file_name")
	}
	ext, err := e.policy().Check(up.FileName, up.ContentType, up.Size)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return "", invalid(field, "exceeds the %d byte upload limit", e.Config.Uploads.MaxBytes)
	case errors.Is(err, media.ErrNotVideo):
		return "", invalid(field, "must be a video file (%s)", strings.Join(e.Config.Uploads.Extensions, ", "))
	case err != nil:
		return "", err
	}
	return ext, nil
}

// UploadVideo stores a new version of the slot's video and moves the slot to
// video_submitted. Nothing is recorded unless the blob write succeeds.
func (e Engine) UploadVideo(ctx context.Context, actor auth.Actor, id string, slot int, up Upload) (UploadResult, error) {
	if e.Media == nil {
		return UploadResult{}, errNoMedia
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return UploadResult{}, err
	}
	if err := auth.RequireCreator(actor, app.UserID, "upload video"); err != nil {
		return UploadResult{}, err
	}
	ext, err := e.checkUpload("file", up)
	if err != nil {
		return UploadResult{}, err
	}
	if err := lifecycle.Project(c, app).Allow(slot, lifecycle.TriggerUploadVideo); err != nil {
		return UploadResult{}, err
	}
	next, err := lifecycle.ApplySlotTrigger(app, slot, lifecycle.TriggerUploadVideo)
	if err != nil {
		return UploadResult{}, err
	}

	blob, err := e.stage(ctx, c, app, slot, domain.TrackVideo, up, ext)
	if err != nil {
		return UploadResult{}, err
	}
	var saved domain.Application
	sub, err := e.recordVersion(ctx, c, app, slot, blob, func(tx *sql.Tx, sub domain.VideoSubmission) error {
		n := next
		n.Slots = append([]domain.ApplicationSlot(nil), next.Slots...)
		s, _ := n.Slot(slot)
		s.VideoURL = sub.URL
		s.UpdatedAt = sub.CreatedAt
		var err error
		if saved, err = e.saveApplication(ctx, tx, app, n); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.VideoUploaded, app.CampaignID, "application", app.ID, actor.ID, submissionPayload(sub)); err != nil {
			return err
		}
		return e.transitionEvents(ctx, tx, actor, app, saved, slot, lifecycle.TriggerUploadVideo)
	})
	if err != nil {
		return UploadResult{}, err
	}
	e.logTransition(saved, actor, slot, lifecycle.TriggerUploadVideo)
	return UploadResult{Submission: sub, Application: saved}, nil
}

// ListSubmissions returns the version history of an application.
func (e Engine) ListSubmissions(ctx context.Context, actor auth.Actor, id string, slot *int, track string) ([]domain.VideoSubmission, error) {
	app, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, app.UserID, "list submissions"); err != nil {
		return nil, err
	}
	if track != "" && track != domain.TrackVideo && track != domain.TrackCleanVideo {
		return nil, invalid("track", "must be video or clean_video")
	}
	return e.Repo.ListSubmissions(ctx, repo.SubmissionFilters{ApplicationID: id, Slot: slot, Track: track})
}

func (e Engine) nextVersion(ctx context.Context, applicationID string, slot int, track string) (int, error) {
	v, err := e.Repo.MaxVersion(ctx, applicationID, slot, track)
	if err != nil {
		return 0, fmt.Errorf("resolve version: %w", err)
	}
	return v + 1, nil
}

// stage resolves the next version and streams the upload into storage.
func (e Engine) stage(ctx context.Context, c domain.Campaign, app domain.Application, slot int, track string, up Upload, ext string) (*stagedBlob, error) {
	version, err := e.nextVersion(ctx, app.ID, slot, track)
	if err != nil {
		return nil, err
	}
	id := newID()
	key := media.Key(c.ID, app.UserID, slot, track, version, e.now(), id, ext)
	obj, err := e.Media.Put(ctx, key, up.Body, e.Config.Uploads.MaxBytes)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return nil, invalid(trackField(track), "exceeds the %d byte upload limit", e.Config.Uploads.MaxBytes)
		}
		e.logger().Error("media write failed",
			"event", "media_write_failed",
			"module", logModule,
			"layer", "engine",
			"application_id", app.ID,
			"slot", domain.SlotLabel(slot),
			"track", track,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("store %s: %w", track, err)
	}
	return &stagedBlob{id: id, track: track, version: version, ext: ext, object: obj, upload: up}, nil
}

// recordVersion inserts the submission row for a staged blob and runs apply in the
// same transaction. A version taken by a concurrent upload is re-resolved and the
// blob moved to the new key, up to uploads.version_retries times.
func (e Engine) recordVersion(ctx context.Context, c domain.Campaign, app domain.Application, slot int, blob *stagedBlob, apply func(tx *sql.Tx, sub domain.VideoSubmission) error) (domain.VideoSubmission, error) {
	retries := e.Config.Uploads.VersionRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; ; attempt++ {
		sub := domain.VideoSubmission{
			ID:            blob.id,
			ApplicationID: app.ID,
			Slot:          slot,
			WeekNumber:    domain.WeekNumber(slot),
			Track:         blob.track,
			Version:       blob.version,
			FileName:      blob.upload.FileName,
			FileSize:      blob.object.Size,
			ContentType:   blob.upload.ContentType,
			URL:           blob.object.URL,
			CreatedAt:     e.timestamp(),
		}
		err := e.insertVersion(ctx, sub, apply)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			e.discard(ctx, blob)
			return domain.VideoSubmission{}, err
		}
		if attempt+1 >= retries {
			e.discard(ctx, blob)
			return domain.VideoSubmission{}, fmt.Errorf("%w: %s %s version %d was taken by a concurrent upload", ErrConflict, domain.SlotLabel(slot), blob.track, blob.version)
		}
		version, err := e.nextVersion(ctx, app.ID, slot, blob.track)
		if err != nil {
			e.discard(ctx, blob)
			return domain.VideoSubmission{}, err
		}
		if version <= blob.version {
			version = blob.version + 1
		}
		key := media.Key(c.ID, app.UserID, slot, blob.track, version, e.now(), blob.id, blob.ext)
		obj, err := e.Media.Move(ctx, blob.object.Key, key)
		if err != nil {
			e.discard(ctx, blob)
			return domain.VideoSubmission{}, fmt.Errorf("store %s: %w", blob.track, err)
		}
		e.logger().Warn("video version collision",
			"event", "video_version_collision",
			"module", logModule,
			"layer", "engine",
			"application_id", app.ID,
			"slot", domain.SlotLabel(slot),
			"track", blob.track,
			"version", blob.version,
			"next_version", version,
		)
		blob.version = version
		blob.object = obj
	}
}

func (e Engine) insertVersion(ctx context.Context, sub domain.VideoSubmission, apply func(tx *sql.Tx, sub domain.VideoSubmission) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSubmission(ctx, tx, sub); err != nil {
		return err
	}
	if err := apply(tx, sub); err != nil {
		return err
	}
	return tx.Commit()
}

// discard removes a blob that will never be referenced.
func (e Engine) discard(ctx context.Context, blob *stagedBlob) {
	if blob == nil {
		return
	}
	if err := e.Media.Delete(context.WithoutCancel(ctx), blob.object.Key); err != nil {
		e.logger().Warn("orphaned media cleanup failed",
			"event", "media_cleanup_failed",
			"module", logModule,
			"layer", "engine",
			"key", blob.object.Key,
			"error", err.Error(),
		)
	}
}

func submissionPayload(sub domain.VideoSubmission) events.EventPayload {
	payload := events.EventPayload{
		"submission_id": sub.ID,
		"slot":          sub.Slot,
		"track":         sub.Track,
		"version":       sub.Version,
		"url":           sub.URL,
		"file_size":     sub.FileSize,
	}
	if sub.WeekNumber != nil {
		payload["week_number"] = *sub.WeekNumber
	}
	return payload
}

func trackField(track string) string {
	if track == domain.TrackCleanVideo {
		return "clean_video"
	}
	return "file"
}
