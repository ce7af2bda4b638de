package campaign

import (
	"bytes"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, arg := range []string{"", "0", "-1", "abc"} {
		_, err := ParseID(arg)
		assert.Error(t, err, arg)
	}
}

func TestListAndUnarchive(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "campaigns.db")

	manager, err := datastore.Open(&settings.Database)
	require.NoError(t, err)
	defer func() { _ = manager.Close() }()
	f := testutil.NewFixtureOn(t, manager.DB(), 1)

	archive := &entities.Archive{ByUserID: &f.Owner.ID, Date: time.Now()}
	require.NoError(t, manager.DB().Create(archive).Error)
	require.NoError(t, manager.DB().Model(f.Campaign).Update("archive_id", archive.ID).Error)

	run := func(args ...string) (string, error) {
		cmd := Command(settings)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Test campaign")
	assert.Contains(t, out, "true")

	id := strconv.FormatUint(uint64(f.Campaign.ID), 10)
	_, err = run("unarchive", id)
	require.NoError(t, err)

	_, err = run("unarchive", id)
	assert.Error(t, err, "already unarchived")

	out, err = run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "false")
}
