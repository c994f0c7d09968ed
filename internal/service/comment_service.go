package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrCommentNotFound      = errors.New("评审备注不存在")
	ErrCommentPermission    = errors.New("无权操作此评审备注")
	ErrParentNotFound       = errors.New("父备注不存在")
	ErrParentNotInRecording = errors.New("父备注不属于该录音")
)

// CommentService 质检员对录音的评审备注。
// 可见性跟随录音本身的访问判定。
type CommentService struct {
	commentRepo   *repository.CommentRepository
	recordingRepo *repository.RecordingRepository
	userRepo      *repository.UserRepository
	guard         *AccessGuard
}

func NewCommentService(
	commentRepo *repository.CommentRepository,
	recordingRepo *repository.RecordingRepository,
	userRepo *repository.UserRepository,
	guard *AccessGuard,
) *CommentService {
	return &CommentService{
		commentRepo:   commentRepo,
		recordingRepo: recordingRepo,
		userRepo:      userRepo,
		guard:         guard,
	}
}

// Create 创建评审备注
func (s *CommentService) Create(principal *model.Principal, recordingID int64, req *dto.CreateCommentRequest) (*dto.CommentItem, error) {
	if err := s.checkRecordingAccess(principal, recordingID); err != nil {
		return nil, err
	}

	// 如果是回复，验证父备注
	if req.ParentID != nil {
		parent, err := s.commentRepo.GetByID(*req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}

		if parent.RecordingID != recordingID {
			return nil, ErrParentNotInRecording
		}

		// 只支持一级回复
		if parent.ParentID != nil {
			req.ParentID = parent.ParentID
		}
	}

	user, err := s.userRepo.GetByID(principal.UserID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		UserID:      principal.UserID,
		RecordingID: recordingID,
		ParentID:    req.ParentID,
		Content:     req.Content,
	}
	if err := s.commentRepo.Create(comment); err != nil {
		return nil, err
	}

	return &dto.CommentItem{
		ID:       comment.ID,
		ParentID: comment.ParentID,
		Content:  comment.Content,
		Author: &dto.AuthorInfo{
			ID:        user.ID,
			Username:  user.Username,
			AvatarURL: user.AvatarURL,
		},
		CreatedAt: comment.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Delete 删除评审备注。作者本人或管理员可删。
func (s *CommentService) Delete(principal *model.Principal, commentID int64) error {
	comment, err := s.commentRepo.GetByID(commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	if comment.UserID != principal.UserID && !principal.IsAdmin() {
		return ErrCommentPermission
	}

	// 连带删除子回复
	s.commentRepo.DeleteByParentID(commentID)
	return s.commentRepo.Delete(commentID)
}

// ListByRecordingID 获取录音的评审备注列表
func (s *CommentService) ListByRecordingID(principal *model.Principal, recordingID int64, page, pageSize int) ([]*dto.CommentItem, int64, error) {
	if err := s.checkRecordingAccess(principal, recordingID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	comments, total, err := s.commentRepo.ListByRecordingID(recordingID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	if len(comments) == 0 {
		return []*dto.CommentItem{}, total, nil
	}

	parentIDs := make([]int64, len(comments))
	for i, c := range comments {
		parentIDs[i] = c.ID
	}

	replies, _ := s.commentRepo.GetRepliesByParentIDs(parentIDs)

	repliesMap := make(map[int64][]*model.Comment)
	for _, r := range replies {
		if r.ParentID != nil {
			repliesMap[*r.ParentID] = append(repliesMap[*r.ParentID], r)
		}
	}

	items := make([]*dto.CommentItem, len(comments))
	for i, c := range comments {
		items[i] = buildCommentItem(c)

		if childReplies, ok := repliesMap[c.ID]; ok {
			items[i].Replies = make([]*dto.CommentItem, len(childReplies))
			for j, r := range childReplies {
				items[i].Replies[j] = buildCommentItem(r)
			}
		}
	}

	return items, total, nil
}

func (s *CommentService) checkRecordingAccess(principal *model.Principal, recordingID int64) error {
	recording, err := s.recordingRepo.GetByID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordingNotFound
		}
		return err
	}
	if !s.guard.CanAccessRecording(principal, recording) {
		return ErrRecordingPermission
	}
	return nil
}

func buildCommentItem(c *model.Comment) *dto.CommentItem {
	item := &dto.CommentItem{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}

	if c.User != nil {
		item.Author = &dto.AuthorInfo{
			ID:        c.User.ID,
			Username:  c.User.Username,
			AvatarURL: c.User.AvatarURL,
		}
	}

	return item
}
