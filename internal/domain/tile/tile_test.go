package tile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
	"github.com/osa030/videowall/internal/domain/tile/tiletest"
)

func TestNewSet(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := tile.NewSet(nil)
		require.ErrorIs(t, err, tile.ErrEmptySet)
	})

	t.Run("slot mismatch", func(t *testing.T) {
		_, err := tile.NewSet([]tile.Handle{tiletest.NewFake(0), tiletest.NewFake(2)})
		require.ErrorIs(t, err, tile.ErrSlotMismatch)
	})

	t.Run("mixed kinds", func(t *testing.T) {
		_, err := tile.NewSet([]tile.Handle{tiletest.NewRateFake(0), tiletest.NewFake(1)})
		require.ErrorIs(t, err, tile.ErrMixedKinds)
	})

	t.Run("valid", func(t *testing.T) {
		_, handles := tiletest.RateFakes(4)
		set, err := tile.NewSet(handles)
		require.NoError(t, err)
		assert.Equal(t, 4, set.Len())
		assert.Equal(t, source.KindLocal, set.Kind())
		assert.Equal(t, 0, set.Master().Index())
		assert.Equal(t, 3, set.At(3).Index())
	})
}

func TestSet_RateHandles(t *testing.T) {
	_, local := tiletest.RateFakes(3)
	set, err := tile.NewSet(local)
	require.NoError(t, err)
	rh, err := set.RateHandles()
	require.NoError(t, err)
	assert.Len(t, rh, 3)

	_, remote := tiletest.Fakes(3)
	set, err = tile.NewSet(remote)
	require.NoError(t, err)
	_, err = set.RateHandles()
	require.ErrorIs(t, err, tile.ErrNoRateControl)
}

func TestSet_PlayAllSkipsUninitialized(t *testing.T) {
	fakes, handles := tiletest.Fakes(3)
	fakes[2].SetInitialized(false)
	set, err := tile.NewSet(handles)
	require.NoError(t, err)

	assert.Equal(t, 2, set.PlayAll())
	assert.Equal(t, 1, fakes[0].PlayCount())
	assert.Equal(t, 1, fakes[1].PlayCount())
	assert.Equal(t, 0, fakes[2].PlayCount())

	fakes[2].SetInitialized(true)
	assert.Equal(t, 3, set.PauseAll())
	assert.Equal(t, 1, fakes[2].PauseCount())
}

func TestSet_MuteSeekLoad(t *testing.T) {
	fakes, handles := tiletest.Fakes(2)
	set, err := tile.NewSet(handles)
	require.NoError(t, err)

	set.SetMuted(true)
	assert.True(t, fakes[0].Muted())
	assert.True(t, fakes[1].Muted())
	set.SetMuted(false)
	assert.False(t, fakes[1].Muted())

	set.SeekAll(12.5)
	assert.Equal(t, []float64{12.5}, fakes[1].Seeks)

	assert.Equal(t, 2, set.LoadAll("jt7AF2RCMhg"))
	assert.Equal(t, "jt7AF2RCMhg", fakes[0].Ref())
}

func TestSet_AllIsCopy(t *testing.T) {
	_, handles := tiletest.Fakes(2)
	set, err := tile.NewSet(handles)
	require.NoError(t, err)

	all := set.All()
	all[0] = nil
	assert.NotNil(t, set.Master())
}
