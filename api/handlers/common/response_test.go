package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewListResponse(t *testing.T) {
	type row struct{ ID string }

	t.Run("整除时不多算一页", func(t *testing.T) {
		resp := NewListResponse([]row{{ID: "a"}, {ID: "b"}}, 1, 20, 40)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Equal(t, 20, resp.Pagination.PageSize)
		assert.EqualValues(t, 40, resp.Pagination.Total)
		assert.Equal(t, 2, resp.Pagination.TotalPage)
	})

	t.Run("余数向上取整", func(t *testing.T) {
		resp := NewListResponse([]row{}, 3, 20, 45)
		assert.Equal(t, 3, resp.Pagination.TotalPage)
	})

	t.Run("空列表零页", func(t *testing.T) {
		resp := NewListResponse([]row{}, 1, 20, 0)
		assert.EqualValues(t, 0, resp.Pagination.Total)
		assert.Equal(t, 0, resp.Pagination.TotalPage)
	})

	t.Run("非法页大小不除零", func(t *testing.T) {
		resp := NewListResponse([]row{}, 1, 0, 10)
		assert.Equal(t, 0, resp.Pagination.TotalPage)
	})
}

func TestAPIResponseShape(t *testing.T) {
	resp := APIResponse{
		Success: true,
		Message: "活动已启动",
		Data:    map[string]int{"steps_created": 4},
	}
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)

	errResp := ErrorResponse{Success: false, Code: "RATE_LIMIT_EXCEEDED", Message: "请求过于频繁"}
	assert.False(t, errResp.Success)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errResp.Code)
}
