// 手动触发一次到期处理
//
// 主应用的后台任务会定期执行同样的处理。此脚本用于手动触发，例如服务
// 长时间停机后，在重新开放考试前先结算已超时的会话和过期的证书。
//
// 用法: go run scripts/sweep.go

package main

import (
	"context"
	"log"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/repository"
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/pkg/clock"
	"tuteck_exam_backend/pkg/database"
	"tuteck_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Database connection failed", zap.Error(err))
	}

	clk := clock.NewReal()
	surveys := repository.NewSurveyRepository(db)
	results := repository.NewResultRepository(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db))
	certs := service.NewCertificateService(
		repository.NewCertificateRepository(db),
		results,
		surveys,
		repository.NewUserRepository(db),
		service.NewStorageService(&cfg.Storage),
		audit,
		clk,
		cfg.Engine.CertificateSequenceWidth,
	)
	engine := service.NewSessionEngine(surveys, repository.NewSessionRepository(db), results, certs, audit, clk, cfg.Exam)

	ctx := context.Background()

	sessions, err := engine.SweepExpired(ctx)
	if err != nil {
		logger.Log.Fatal("Session sweep failed", zap.Error(err))
	}
	expired, err := certs.ExpireDue(ctx, clk.Now())
	if err != nil {
		logger.Log.Fatal("Certificate sweep failed", zap.Error(err))
	}

	logger.Log.Info("Sweep finished", zap.Int("sessions", sessions), zap.Int("certificates", expired))
}
