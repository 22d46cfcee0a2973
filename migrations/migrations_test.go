package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasADown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestSourceDriverReadsVersions(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	first, err := src.First()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next)
}

func TestPatientDeletionCascadesToAppointments(t *testing.T) {
	body, err := fs.ReadFile(FS, "000002_patient_cascade.up.sql")
	require.NoError(t, err)
	sql := string(body)

	patientFK := regexp.MustCompile(`(?s)FOREIGN KEY \(patient_id\) REFERENCES patients \(id\) ON DELETE CASCADE`)
	assert.Regexp(t, patientFK, sql)

	// The professional reference keeps the default restriction.
	assert.NotContains(t, sql, "professional_id")
}
