package main

import (
	"github.com/hibiken/asynq"

	returnsJob "returns-backend/internal/domains/returns/job"
	"returns-backend/internal/infrastructure/email"
	"returns-backend/internal/infrastructure/sms"
	"returns-backend/internal/shared"
	"returns-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Notification handlers
	sendPickupOtp *returnsJob.SendPickupOtpHandler
	statusChanged *returnsJob.StatusChangedHandler

	// Maintenance handlers
	sweepExpiredOtps *returnsJob.SweepExpiredOtpsHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container, cfg *Config) *HandlerRegistry {
	smtpCfg := c.Config.SMTP
	emailSvc := email.NewSMTPEmailService(smtpCfg.Host, smtpCfg.Port, smtpCfg.From)
	smsSvc := sms.NewMockSMSService()

	return &HandlerRegistry{
		sendPickupOtp:    returnsJob.NewSendPickupOtpHandler(smsSvc, emailSvc),
		statusChanged:    returnsJob.NewStatusChangedHandler(emailSvc),
		sweepExpiredOtps: returnsJob.NewSweepExpiredOtpsHandler(c.ReturnRepo),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Notification tasks
	mux.HandleFunc(shared.TypeSendPickupOtp, h.sendPickupOtp.ProcessTask)
	mux.HandleFunc(shared.TypeReturnStatusChanged, h.statusChanged.ProcessTask)

	// Maintenance tasks
	mux.HandleFunc(shared.TypeSweepExpiredOtps, h.sweepExpiredOtps.ProcessTask)
}
