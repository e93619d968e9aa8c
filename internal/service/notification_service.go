package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/observability"
	"github.com/examflow/examflow-api/internal/repository"
)

const notificationBufferSize = 16

// ErrEmptyMessage indicates the broadcast message vanished after sanitization.
var ErrEmptyMessage = errors.New("notification message empty after sanitization")

// NotificationService fans alerts out to per-recipient rows and streams them
// to connected clients.
type NotificationService interface {
	Broadcast(ctx context.Context, actor Actor, payload dto.BroadcastRequest) (dto.BroadcastResponse, error)
	List(ctx context.Context, actor Actor, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, actor Actor, id uint) (dto.NotificationResponse, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	users       repository.UserRepository
	subjects    repository.SubjectRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source        string                     `json:"source"`
	Notifications []dto.NotificationResponse `json:"notifications"`
	SentAt        time.Time                  `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. channelBase names
// the redis channel and NATS subject used to relay events between instances.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, subjects repository.SubjectRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		users:       users,
		subjects:    subjects,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/examflow/examflow-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Broadcast resolves recipients for the requested target mode, deduplicates
// them and writes one notification row per recipient. An empty resolution
// writes nothing and reports zero recipients.
func (s *notificationService) Broadcast(ctx context.Context, actor Actor, payload dto.BroadcastRequest) (dto.BroadcastResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BroadcastResponse{}, err
	}

	if actor.Role != models.RoleHOD {
		return dto.BroadcastResponse{}, ErrRoleNotAllowed
	}
	if actor.DepartmentID == nil {
		return dto.BroadcastResponse{}, ErrNoDepartment
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.BroadcastResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.broadcast", trace.WithAttributes(
		attribute.String("broadcast.target_mode", payload.TargetMode),
		attribute.Int64("broadcast.sender_id", int64(actor.ID)),
	))
	defer span.End()

	recipients, err := s.resolveRecipients(spanCtx, actor, payload)
	if err != nil {
		span.RecordError(err)
		return dto.BroadcastResponse{}, err
	}

	observability.BroadcastRecipients().Observe(float64(len(recipients)))
	span.SetAttributes(attribute.Int("broadcast.recipients", len(recipients)))

	if len(recipients) == 0 {
		return dto.BroadcastResponse{RecipientCount: 0}, nil
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		rows = append(rows, models.Notification{
			UserID:    recipientID,
			SenderID:  actor.ID,
			Title:     strings.TrimSpace(payload.Title),
			Message:   cleanMessage,
			Type:      payload.Type,
			ExpiresAt: payload.ExpiresAt,
		})
	}

	if err := s.repo.CreateBatch(spanCtx, rows); err != nil {
		span.RecordError(err)
		return dto.BroadcastResponse{}, err
	}

	responses := dto.NewNotificationResponseSlice(rows)
	for _, response := range responses {
		s.broker.broadcast(response.UserID, response)
	}
	if err := s.publish(spanCtx, responses); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification event")
	}

	s.logger.Info().
		Int("recipients", len(recipients)).
		Str("target_mode", payload.TargetMode).
		Msg("broadcast delivered")

	return dto.BroadcastResponse{RecipientCount: len(recipients)}, nil
}

// resolveRecipients maps the target mode onto teacher-role profiles within
// the sender's department.
func (s *notificationService) resolveRecipients(ctx context.Context, actor Actor, payload dto.BroadcastRequest) ([]uint, error) {
	switch payload.TargetMode {
	case models.BroadcastTargetDepartment:
		profiles, err := s.users.ListByRoleAndDepartment(ctx, models.RoleTeacher, *actor.DepartmentID)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(profiles))
		for _, profile := range profiles {
			ids = append(ids, profile.ID)
		}
		return dedupeIDs(ids), nil

	case models.BroadcastTargetSubjects:
		if len(payload.SubjectIDs) == 0 {
			return nil, nil
		}
		teacherIDs, err := s.subjects.ListTeacherIDsBySubjects(ctx, payload.SubjectIDs)
		if err != nil {
			return nil, err
		}
		profiles, err := s.users.ListByIDs(ctx, dedupeIDs(teacherIDs))
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(profiles))
		for _, profile := range profiles {
			if profile.DepartmentID != nil && *profile.DepartmentID == *actor.DepartmentID {
				ids = append(ids, profile.ID)
			}
		}
		return dedupeIDs(ids), nil

	default:
		return nil, errors.New("unsupported target mode")
	}
}

func (s *notificationService) List(ctx context.Context, actor Actor, limit, offset int) ([]dto.NotificationResponse, error) {
	if actor.ID == 0 {
		return nil, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor Actor, id uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, actor.ID)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
	}

	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notifications []dto.NotificationResponse) error {
	event := notificationEvent{
		Source:        s.nodeID,
		Notifications: notifications,
		SentAt:        time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "examflow-notifications", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	for _, notification := range event.Notifications {
		s.broker.broadcast(notification.UserID, notification)
	}
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[userID]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
