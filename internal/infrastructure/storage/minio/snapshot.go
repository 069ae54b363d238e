package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

const (
	snapshotPrefix     = "snapshots/"
	snapshotTimeLayout = "20060102T150405Z"
	contentTypeJSON    = "application/json"
)

// SnapshotInfo describes one archived analysis.
type SnapshotInfo struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRecorder counts archive writes.
type SnapshotRecorder interface {
	RecordSnapshot(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordSnapshot(error) {}

// SnapshotArchive stores point-in-time analysis documents per user under
// snapshots/<user>/<timestamp>-<id>.json.
type SnapshotArchive struct {
	client   *Client
	recorder SnapshotRecorder
	logger   logging.Logger

	now   func() time.Time
	newID func() string
}

func NewSnapshotArchive(client *Client, rec SnapshotRecorder, log logging.Logger) *SnapshotArchive {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SnapshotArchive{
		client:   client,
		recorder: rec,
		logger:   log,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func userPrefix(userID string) string { return snapshotPrefix + userID + "/" }

func validUserID(userID string) error {
	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return errors.NewValidation("invalid user id %q", userID)
	}
	return nil
}

// Save serialises payload and stores it as a new snapshot for userID.
func (a *SnapshotArchive) Save(ctx context.Context, userID string, payload interface{}) (info *SnapshotInfo, err error) {
	defer func() { a.recorder.RecordSnapshot(err) }()

	if err := validUserID(userID); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode snapshot")
	}
	api, err := a.client.handle()
	if err != nil {
		return nil, err
	}

	created := a.now().UTC()
	name := created.Format(snapshotTimeLayout) + "-" + a.newID() + ".json"
	key := userPrefix(userID) + name
	_, err = api.PutObject(ctx, a.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentTypeJSON,
		UserMetadata: map[string]string{"user-id": userID},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to store snapshot")
	}

	a.logger.Info("snapshot archived", logging.UserID(userID), logging.String("key", key), logging.Int("bytes", len(data)))
	return &SnapshotInfo{
		Key:       key,
		Name:      name,
		UserID:    userID,
		Size:      int64(len(data)),
		CreatedAt: created.Truncate(time.Second),
	}, nil
}

// List returns the user's snapshots, newest first.
func (a *SnapshotArchive) List(ctx context.Context, userID string) ([]SnapshotInfo, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	api, err := a.client.handle()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := []SnapshotInfo{}
	objects := api.ListObjects(ctx, a.client.Bucket(), minio.ListObjectsOptions{Prefix: userPrefix(userID), Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeServiceUnavailable, "failed to list snapshots")
		}
		name := path.Base(obj.Key)
		out = append(out, SnapshotInfo{
			Key:       obj.Key,
			Name:      name,
			UserID:    userID,
			Size:      obj.Size,
			CreatedAt: createdAt(name, obj.LastModified),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// createdAt reads the timestamp encoded in the object name and falls back
// to the store's modification time.
func createdAt(name string, modified time.Time) time.Time {
	stamp, _, ok := strings.Cut(name, "-")
	if ok {
		if t, err := time.Parse(snapshotTimeLayout, stamp); err == nil {
			return t
		}
	}
	return modified.UTC()
}

// Load returns the raw JSON of one snapshot.
func (a *SnapshotArchive) Load(ctx context.Context, userID, name string) ([]byte, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, "/\\") || !strings.HasSuffix(name, ".json") {
		return nil, errors.NewValidation("invalid snapshot name %q", name)
	}
	if _, err := a.client.handle(); err != nil {
		return nil, err
	}

	key := userPrefix(userID) + name
	rc, err := a.client.getObject(ctx, a.client.Bucket(), key)
	if err != nil {
		return nil, a.readError(err, key)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, a.readError(err, key)
	}
	return data, nil
}

func (a *SnapshotArchive) readError(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.New(errors.ErrCodeSnapshotNotFound, "snapshot not found: "+key)
	}
	return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to read snapshot")
}
