package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/store"
)

func sealedPack(t *testing.T, run ident.RunID, scenario ident.ScenarioID) *runpack.Pack {
	t.Helper()
	r := runpack.NewRecorder(run, scenario)
	_, err := r.Append(runpack.StepSpecLoaded, map[string]string{"spec_hash": "sha256:abc"})
	require.NoError(t, err)
	_, err = r.Append(runpack.StepDecided, map[string]string{"state": "decided"})
	require.NoError(t, err)
	p, err := r.Seal()
	require.NoError(t, err)
	return p
}

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	p := sealedPack(t, "run-1", "loan.approval")
	require.NoError(t, s.PutRunpack(ctx, p))

	got, err := s.GetRunpack(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, p.Fingerprint, got.Fingerprint)
	assert.Len(t, got.Steps, 2)
}

func TestPutDuplicateFails(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	p := sealedPack(t, "run-1", "loan.approval")
	require.NoError(t, s.PutRunpack(ctx, p))
	assert.ErrorIs(t, s.PutRunpack(ctx, p), store.ErrDuplicate)
}

func TestGetMissing(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetRunpack(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListByScenario(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutRunpack(ctx, sealedPack(t, "run-b", "scen.a")))
	require.NoError(t, s.PutRunpack(ctx, sealedPack(t, "run-a", "scen.a")))
	require.NoError(t, s.PutRunpack(ctx, sealedPack(t, "run-c", "scen.other")))

	ids, err := s.ListRunpacks(ctx, "scen.a")
	require.NoError(t, err)
	assert.Equal(t, []ident.RunID{"run-a", "run-b"}, ids)
}
