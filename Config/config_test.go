package Config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"WORKDESK_BACKEND", "DB_DRIVER", "UPLOAD_TIMEOUT", "DEFAULT_LOCALE", "WORK_WEEK_TARGET", "NOTIFY_SEEN_CAPACITY", "DB_DSN", "DB_NAME"} {
		t.Setenv(key, "")
	}
	c := FromEnv()
	assert.Equal(t, BackendLocal, c.Backend)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 90*time.Second, c.UploadTimeout)
	assert.Equal(t, "ko", c.DefaultLocale)
	assert.Equal(t, 40*time.Hour, c.WorkWeekTarget)
	assert.Equal(t, 1024, c.NotifySeenCapacity)
	assert.Equal(t, "workdesk.db", c.DSN())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("UPLOAD_TIMEOUT", "30s")
	t.Setenv("NOTIFY_SEEN_CAPACITY", "nope")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "desk")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "wd")

	c := FromEnv()
	assert.Equal(t, 30*time.Second, c.UploadTimeout)
	assert.Equal(t, 1024, c.NotifySeenCapacity, "unparsable values fall back")
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Contains(t, c.DSN(), "desk:pw@tcp(db:3306)/wd")
}

func TestValidate(t *testing.T) {
	local := Config{Backend: BackendLocal, DBDriver: "sqlite", NotifySeenCapacity: 10}
	assert.ErrorIs(t, local.Validate(), ErrMissingCredentials)

	local.JWTSecret = "s3cret"
	require.NoError(t, local.Validate())

	local.DBDriver = "oracle"
	assert.Error(t, local.Validate())

	fs := Config{Backend: BackendFirestore, FirebaseProjectID: "p", NotifySeenCapacity: 10}
	assert.ErrorIs(t, fs.Validate(), ErrMissingCredentials)
	fs.FirebaseCredentials = "key.json"
	assert.NoError(t, fs.Validate())

	assert.Error(t, Config{Backend: "mongo"}.Validate())
}
