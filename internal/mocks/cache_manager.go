// Package mocks holds testify mocks for interfaces shared across packages.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockCacheManager is a mock of cachemanager.CacheManager.
type MockCacheManager[K ~string, V any] struct {
	mock.Mock
}

// MockCacheManager_Expecter builds typed expectations.
type MockCacheManager_Expecter[K ~string, V any] struct {
	mock *mock.Mock
}

func (_m *MockCacheManager[K, V]) EXPECT() *MockCacheManager_Expecter[K, V] {
	return &MockCacheManager_Expecter[K, V]{mock: &_m.Mock}
}

// NewMockCacheManager creates a mock whose expectations are asserted on
// test cleanup.
func NewMockCacheManager[K ~string, V any](t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCacheManager[K, V] {
	m := &MockCacheManager[K, V]{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	ret := _m.Called(ctx, key)
	return valueAt[V](ret, 0), ret.Bool(1)
}

func (_m *MockCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	ret := _m.Called(ctx, key, ttl)
	return valueAt[V](ret, 0), ret.Bool(1)
}

func (_m *MockCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	_m.Called(ctx, key, value, ttl)
}

func (_m *MockCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	args := []any{ctx}
	for _, k := range keys {
		args = append(args, k)
	}
	return _m.Called(args...).Error(0)
}

func (_m *MockCacheManager[K, V]) Flush(ctx context.Context) error {
	return _m.Called(ctx).Error(0)
}

type MockCacheManager_Get_Call[K ~string, V any] struct {
	*mock.Call
}

func (_e *MockCacheManager_Expecter[K, V]) Get(ctx any, key any) *MockCacheManager_Get_Call[K, V] {
	return &MockCacheManager_Get_Call[K, V]{Call: _e.mock.On("Get", ctx, key)}
}

func (_c *MockCacheManager_Get_Call[K, V]) Return(value V, found bool) *MockCacheManager_Get_Call[K, V] {
	_c.Call.Return(value, found)
	return _c
}

type MockCacheManager_GetWithRefresh_Call[K ~string, V any] struct {
	*mock.Call
}

func (_e *MockCacheManager_Expecter[K, V]) GetWithRefresh(ctx any, key any, ttl any) *MockCacheManager_GetWithRefresh_Call[K, V] {
	return &MockCacheManager_GetWithRefresh_Call[K, V]{Call: _e.mock.On("GetWithRefresh", ctx, key, ttl)}
}

func (_c *MockCacheManager_GetWithRefresh_Call[K, V]) Return(value V, found bool) *MockCacheManager_GetWithRefresh_Call[K, V] {
	_c.Call.Return(value, found)
	return _c
}

type MockCacheManager_Set_Call[K ~string, V any] struct {
	*mock.Call
}

func (_e *MockCacheManager_Expecter[K, V]) Set(ctx any, key any, value any, ttl any) *MockCacheManager_Set_Call[K, V] {
	return &MockCacheManager_Set_Call[K, V]{Call: _e.mock.On("Set", ctx, key, value, ttl)}
}

func (_c *MockCacheManager_Set_Call[K, V]) Return() *MockCacheManager_Set_Call[K, V] {
	_c.Call.Return()
	return _c
}

type MockCacheManager_Delete_Call[K ~string, V any] struct {
	*mock.Call
}

func (_e *MockCacheManager_Expecter[K, V]) Delete(ctx any, keys ...any) *MockCacheManager_Delete_Call[K, V] {
	return &MockCacheManager_Delete_Call[K, V]{Call: _e.mock.On("Delete", append([]any{ctx}, keys...)...)}
}

func (_c *MockCacheManager_Delete_Call[K, V]) Return(err error) *MockCacheManager_Delete_Call[K, V] {
	_c.Call.Return(err)
	return _c
}

type MockCacheManager_Flush_Call[K ~string, V any] struct {
	*mock.Call
}

func (_e *MockCacheManager_Expecter[K, V]) Flush(ctx any) *MockCacheManager_Flush_Call[K, V] {
	return &MockCacheManager_Flush_Call[K, V]{Call: _e.mock.On("Flush", ctx)}
}

func (_c *MockCacheManager_Flush_Call[K, V]) Return(err error) *MockCacheManager_Flush_Call[K, V] {
	_c.Call.Return(err)
	return _c
}

func valueAt[V any](ret mock.Arguments, i int) V {
	var zero V
	if v, ok := ret.Get(i).(V); ok {
		return v
	}
	return zero
}
