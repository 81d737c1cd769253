package common

// APIResponse 单对象接口的统一响应包装
// 活动、联系人、审批裁决等接口都以此结构返回
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginationMeta 分页元信息
type PaginationMeta struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"total_page"`
}

// ListResponse 列表接口的统一响应包装
// 活动列表、步骤列表、待审批项等都附带分页信息
type ListResponse struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// ErrorResponse 统一错误返回结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewListResponse 组装分页列表响应
// 总页数向上取整，pageSize 非法时记为 0 页
func NewListResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPage := 0
	if pageSize > 0 {
		totalPage = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPage++
		}
	}
	return ListResponse{
		Items: items,
		Pagination: PaginationMeta{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	}
}
