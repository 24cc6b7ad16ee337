package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/antrail/internal/mocks"
)

type fetchInput struct {
	Path string
}

func fetchFigure(calls *int) func(ctx context.Context, in fetchInput) (figure, error) {
	return func(ctx context.Context, in fetchInput) (figure, error) {
		*calls++
		return figure{Edges: len(in.Path), Title: in.Path}, nil
	}
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	calls := 0

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(&calls), true)

	got, err := rtc.Get(context.Background(), "graph", fetchInput{Path: "/get_graph"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "/get_graph", got.Title)
	require.Equal(t, 1, calls)

	require.NoError(t, rtc.Invalidate(context.Background(), "graph"))
}

func TestReadThroughCache_Get_WithValueInCache(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	managerMock.EXPECT().Get(mock.Anything, artifactKey("graph")).Return(figure{Title: "cached"}, true)
	calls := 0

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(&calls), false)

	got, err := rtc.Get(context.Background(), "graph", fetchInput{Path: "/get_graph"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "cached", got.Title)
	require.Zero(t, calls)
}

func TestReadThroughCache_Get_EmptyCache(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	managerMock.EXPECT().Get(mock.Anything, artifactKey("graph")).Return(figure{}, false)
	managerMock.EXPECT().Set(mock.Anything, artifactKey("graph"), figure{Edges: 10, Title: "/get_graph"}, time.Minute).Return()
	calls := 0

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(&calls), false)

	got, err := rtc.Get(context.Background(), "graph", fetchInput{Path: "/get_graph"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 10, got.Edges)
	require.Equal(t, 1, calls)
}

func TestReadThroughCache_Get_FetchErrorIsNotCached(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	managerMock.EXPECT().Get(mock.Anything, artifactKey("graph")).Return(figure{}, false)

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](
		managerMock,
		func(ctx context.Context, in fetchInput) (figure, error) {
			return figure{}, errors.New("connection refused")
		},
		false,
	)

	_, err := rtc.Get(context.Background(), "graph", fetchInput{Path: "/get_graph"}, time.Minute)
	require.EqualError(t, err, "connection refused")
	managerMock.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_Invalidate(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	managerMock.EXPECT().Delete(mock.Anything, artifactKey("graph"), artifactKey("best-route")).Return(nil)

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(new(int)), false)
	require.NoError(t, rtc.Invalidate(context.Background(), "graph", "best-route"))
	require.NoError(t, rtc.Invalidate(context.Background()))
}

func TestReadThroughCache_Flush(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[artifactKey, figure](t)
	managerMock.EXPECT().Flush(mock.Anything).Return(nil).Once()

	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(new(int)), false)
	require.NoError(t, rtc.Flush(context.Background()))

	skipping := NewReadThroughCache[artifactKey, figure, fetchInput](managerMock, fetchFigure(new(int)), true)
	require.NoError(t, skipping.Flush(context.Background()))
}

func TestReadThroughCache_WithInMemoryCache(t *testing.T) {
	cache := NewInMemoryCacheManager[artifactKey, figure]("artifacts", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	rtc := NewReadThroughCache[artifactKey, figure, fetchInput](cache, fetchFigure(&calls), false)
	ctx := context.Background()

	for range 3 {
		_, err := rtc.Get(ctx, "graph", fetchInput{Path: "/get_graph"}, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls)

	require.NoError(t, rtc.Invalidate(ctx, "graph"))
	_, err := rtc.Get(ctx, "graph", fetchInput{Path: "/get_graph"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
