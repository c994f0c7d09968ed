package service

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrFileTooLarge     = errors.New("文件过大")
	ErrInvalidAudioType = errors.New("不支持的音频格式")
	ErrTeamPermission   = errors.New("不是该团队成员")
)

// RecordingStorage 录音文件存储，OSS 或本地磁盘
type RecordingStorage interface {
	UploadRecording(companyID int64, data []byte, ext string) (string, error)
	GetSignedURL(key string, expireSeconds ...int64) (string, error)
	Delete(key string) error
}

type RecordingService struct {
	recordingRepo     *repository.RecordingRepository
	transcriptionRepo *repository.TranscriptionRepository
	analysisRepo      *repository.AnalysisRepository
	guard             *AccessGuard
	storage           RecordingStorage
	cfg               *config.Config
}

func NewRecordingService(
	recordingRepo *repository.RecordingRepository,
	transcriptionRepo *repository.TranscriptionRepository,
	analysisRepo *repository.AnalysisRepository,
	guard *AccessGuard,
	storage RecordingStorage,
	cfg *config.Config,
) *RecordingService {
	return &RecordingService{
		recordingRepo:     recordingRepo,
		transcriptionRepo: transcriptionRepo,
		analysisRepo:      analysisRepo,
		guard:             guard,
		storage:           storage,
		cfg:               cfg,
	}
}

// Upload 上传录音文件并建档
func (s *RecordingService) Upload(principal *model.Principal, req *dto.CreateRecordingRequest, filename string, data []byte) (*dto.CreateRecordingResponse, error) {
	if s.cfg.Upload.MaxSize > 0 && int64(len(data)) > s.cfg.Upload.MaxSize {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.extAllowed(ext) {
		return nil, ErrInvalidAudioType
	}

	// 挂到团队下需要是团队成员
	if req.TeamID != nil && !principal.IsAdmin() && !principal.InTeam(*req.TeamID) {
		return nil, ErrTeamPermission
	}

	storageKey, err := s.storage.UploadRecording(principal.CompanyID, data, ext)
	if err != nil {
		return nil, err
	}

	recording := &model.Recording{
		UserID:      principal.UserID,
		TeamID:      req.TeamID,
		EmployeeID:  req.EmployeeID,
		Title:       req.Title,
		Description: req.Description,
		StorageKey:  storageKey,
		FileSize:    int64(len(data)),
	}
	if err := s.recordingRepo.Create(recording); err != nil {
		s.storage.Delete(storageKey)
		return nil, err
	}

	return &dto.CreateRecordingResponse{
		RecordingID: recording.ID,
		StorageKey:  storageKey,
	}, nil
}

// List 分页列出主体可见的录音，带两个阶段的最新状态
func (s *RecordingService) List(principal *model.Principal, page, pageSize int, search string) ([]*dto.RecordingListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	recordings, total, err := s.recordingRepo.ListVisible(
		principal.UserID, principal.CompanyID, principal.TeamIDs,
		principal.IsAdmin(), page, pageSize, search)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int64, 0, len(recordings))
	for _, r := range recordings {
		ids = append(ids, r.ID)
	}

	tStatuses, err := s.transcriptionRepo.StatusByRecordingIDs(ids)
	if err != nil {
		return nil, 0, err
	}
	aStatuses, err := s.analysisRepo.StatusByRecordingIDs(ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.RecordingListItem, 0, len(recordings))
	for _, r := range recordings {
		item := &dto.RecordingListItem{
			ID:                  r.ID,
			Title:               r.Title,
			TeamID:              r.TeamID,
			DurationSeconds:     r.DurationSeconds,
			TranscriptionStatus: stageOrPending(tStatuses[r.ID]),
			AnalysisStatus:      stageOrPending(aStatuses[r.ID]),
			CreatedAt:           r.CreatedAt.Format(time.RFC3339),
		}
		items = append(items, item)
	}
	return items, total, nil
}

// Get 获取录音详情（含临时下载链接）
func (s *RecordingService) Get(principal *model.Principal, id int64) (*dto.RecordingDetail, error) {
	recording, err := s.recordingRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	if !s.guard.CanAccessRecording(principal, recording) {
		return nil, ErrRecordingPermission
	}

	detail := &dto.RecordingDetail{
		ID:              recording.ID,
		Title:           recording.Title,
		Description:     recording.Description,
		StorageKey:      recording.StorageKey,
		TeamID:          recording.TeamID,
		EmployeeID:      recording.EmployeeID,
		DurationSeconds: recording.DurationSeconds,
		FileSize:        recording.FileSize,
		CreatedAt:       recording.CreatedAt.Format(time.RFC3339),
	}

	// 签名失败不致命，详情页其它字段照常返回
	if url, err := s.storage.GetSignedURL(recording.StorageKey); err == nil {
		detail.DownloadURL = url
	}
	return detail, nil
}

// Delete 删除录音及其存储对象。仅上传者本人或管理员可删。
func (s *RecordingService) Delete(principal *model.Principal, id int64) error {
	recording, err := s.recordingRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordingNotFound
		}
		return err
	}
	if recording.UserID != principal.UserID && !principal.IsAdmin() {
		return ErrRecordingPermission
	}

	if err := s.recordingRepo.Delete(id); err != nil {
		return err
	}
	// 存储对象删除失败只记录，不回滚档案删除
	s.storage.Delete(recording.StorageKey)
	return nil
}

func (s *RecordingService) extAllowed(ext string) bool {
	allowed := s.cfg.Upload.AllowedExtensions
	if len(allowed) == 0 {
		allowed = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func stageOrPending(status string) string {
	if status == "" {
		return model.StagePending
	}
	return status
}
