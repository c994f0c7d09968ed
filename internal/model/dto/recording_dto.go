package dto

// CreateRecordingRequest 上传录音的表单字段（文件走 multipart）
type CreateRecordingRequest struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"omitempty,max=2000"`
	TeamID      *int64 `form:"team_id"`
	EmployeeID  *int64 `form:"employee_id"`
}

// CreateRecordingResponse 上传录音响应
type CreateRecordingResponse struct {
	RecordingID int64  `json:"recording_id"`
	StorageKey  string `json:"storage_key"`
}

// RecordingListItem 录音列表项
type RecordingListItem struct {
	ID                  int64  `json:"id"`
	Title               string `json:"title"`
	TeamID              *int64 `json:"team_id,omitempty"`
	DurationSeconds     int    `json:"duration_seconds,omitempty"`
	TranscriptionStatus string `json:"transcription_status"`
	AnalysisStatus      string `json:"analysis_status"`
	CreatedAt           string `json:"created_at"`
}

// RecordingDetail 录音详情
type RecordingDetail struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	StorageKey      string `json:"storage_key"`
	DownloadURL     string `json:"download_url,omitempty"`
	TeamID          *int64 `json:"team_id,omitempty"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	FileSize        int64  `json:"file_size,omitempty"`
	CreatedAt       string `json:"created_at"`
}
