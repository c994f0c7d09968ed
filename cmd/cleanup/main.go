package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	dryRun      = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	audioExpire = flag.Int("audio-expire", 72, "Hours to keep local audio whose transcription is completed")
	staleAfter  = flag.Int("stale-after", 30, "Minutes before a processing stage is considered stuck")
	cleanAudio  = flag.Bool("clean-audio", true, "Clean transcribed local audio files")
	reapStale   = flag.Bool("reap-stale", true, "Mark stuck processing stages as failed")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	deletedSize := int64(0)
	deletedFiles := 0

	// 1. 清理已转写完成的本地音频
	if *cleanAudio && cfg.Upload.LocalDir != "" {
		log.Printf("\n🎧 Cleaning transcribed local audio (older than %d hours)...", *audioExpire)
		size, count := cleanTranscribedAudio(db, cfg.Upload.LocalDir, *audioExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 2. 把卡死的 processing 阶段标记为 failed
	if *reapStale {
		log.Printf("\n⏱  Reaping stages stuck in processing for over %d minutes...", *staleAfter)
		reapStuckStages(db, *staleAfter, *dryRun)
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Deleted files: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - No changes were actually made")
		log.Println("   Run with -dry-run=false to apply")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanTranscribedAudio 删除转写已完成且超过保留期的本地音频。
// 转写文本已持久化，旧音频只在人工复核时需要，保留期后可回收。
func cleanTranscribedAudio(db *gorm.DB, localDir string, expireHours int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var totalSize int64
	var count int

	var recordings []model.Recording
	err := db.Joins("JOIN transcriptions ON transcriptions.recording_id = recordings.id").
		Where("transcriptions.status = ?", model.StageCompleted).
		Find(&recordings).Error
	if err != nil {
		log.Printf("Failed to query recordings: %v", err)
		return 0, 0
	}

	log.Printf("Found %d recordings with completed transcriptions", len(recordings))

	for _, recording := range recordings {
		localPath := filepath.Join(localDir, recording.StorageKey)

		info, err := os.Stat(localPath)
		if os.IsNotExist(err) {
			continue // 不是本地存储的录音，跳过
		}
		if err != nil {
			log.Printf("  ⚠️  Failed to stat %s: %v", recording.StorageKey, err)
			continue
		}

		if info.ModTime().Before(expireTime) {
			totalSize += info.Size()

			log.Printf("  - %s (%.2f MB, %s old)",
				recording.StorageKey,
				float64(info.Size())/1024/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.Remove(localPath); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d audio files to clean (total: %s)", count, formatSize(totalSize))
	return totalSize, count
}

// reapStuckStages 把卡在 processing 的阶段标记为 failed，用户可重试
func reapStuckStages(db *gorm.DB, staleMinutes int, dryRun bool) {
	before := time.Now().Add(-time.Duration(staleMinutes) * time.Minute)

	if dryRun {
		var t, a int64
		db.Model(&model.Transcription{}).
			Where("status = ? AND started_at < ?", model.StageProcessing, before).Count(&t)
		db.Model(&model.Analysis{}).
			Where("status = ? AND started_at < ?", model.StageProcessing, before).Count(&a)
		log.Printf("Would mark %d transcriptions, %d analyses as failed", t, a)
		return
	}

	detail := "处理超时，已被系统标记为失败"
	transcriptionRepo := repository.NewTranscriptionRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	t, err := transcriptionRepo.FailStale(before, detail)
	if err != nil {
		log.Printf("Failed to reap transcriptions: %v", err)
	}
	a, err := analysisRepo.FailStale(before, detail)
	if err != nil {
		log.Printf("Failed to reap analyses: %v", err)
	}
	log.Printf("Marked %d transcriptions, %d analyses as failed", t, a)
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
