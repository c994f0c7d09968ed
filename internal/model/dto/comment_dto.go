package dto

// CreateCommentRequest 创建评审备注请求
type CreateCommentRequest struct {
	Content  string `json:"content" binding:"required,max=2000"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// CommentItem 评审备注项
type CommentItem struct {
	ID        int64          `json:"id"`
	Content   string         `json:"content"`
	ParentID  *int64         `json:"parent_id,omitempty"`
	Author    *AuthorInfo    `json:"author,omitempty"`
	Replies   []*CommentItem `json:"replies,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// AuthorInfo 作者信息
type AuthorInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// QuotaInfo 用户配额信息
type QuotaInfo struct {
	Tier        string `json:"tier"`
	DailyLimit  int    `json:"daily_limit"`
	DailyUsed   int    `json:"daily_used"`
	DailyRemain int    `json:"daily_remain"`
	ResetAt     string `json:"reset_at,omitempty"`
}
