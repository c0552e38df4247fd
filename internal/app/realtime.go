package app

import (
	"context"

	chatstore "github.com/studyflow-app/studyflow-core/internal/app/services/chat"
	jobssvc "github.com/studyflow-app/studyflow-core/internal/app/services/jobs"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

// realtimeService keeps the websocket subscriptions alive for the lifetime
// of the application so remote table changes reach the reactive stores.
type realtimeService struct {
	rt   *client.RealtimeClient
	jobs *jobssvc.Service
	chat *chatstore.Service
	log  *logger.Logger
}

func newRealtimeService(rt *client.RealtimeClient, jobs *jobssvc.Service, chat *chatstore.Service, log *logger.Logger) *realtimeService {
	return &realtimeService{rt: rt, jobs: jobs, chat: chat, log: log.With("component", "realtime")}
}

func (s *realtimeService) Name() string { return "realtime" }

func (s *realtimeService) Start(ctx context.Context) error {
	if err := s.rt.Connect(ctx); err != nil {
		return err
	}
	if err := s.jobs.AttachRealtime(ctx, s.rt, "jobs"); err != nil {
		return err
	}
	if err := s.chat.AttachRealtime(ctx, s.rt, "messages"); err != nil {
		return err
	}
	s.log.Info("realtime subscriptions active")
	return nil
}

func (s *realtimeService) Stop(ctx context.Context) error {
	return s.rt.Disconnect()
}
