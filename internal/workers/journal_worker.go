package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/services"
)

const (
	DefaultJournalStream = "interview:answers"
	DefaultJournalGroup  = "answer-journal"
)

// StreamJournal queues answer entries on a Redis stream for JournalWorkerPool.
type StreamJournal struct {
	Redis  *redis.Client
	Stream string
}

func (j *StreamJournal) Record(ctx context.Context, e services.AnswerEntry) error {
	stream := j.Stream
	if stream == "" {
		stream = DefaultJournalStream
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"interview_id": e.InterviewID,
			"turn_id":      e.TurnID,
			"entry":        string(b),
			"ts_unix":      strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// JournalWorkerPool drains the answer stream into Postgres.
type JournalWorkerPool struct {
	Redis      *redis.Client
	Journal    services.JournalService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *JournalWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Journal == nil {
		return errors.New("JournalWorkerPool missing dependency: Redis/Journal must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultJournalStream
	}
	if p.Group == "" {
		p.Group = DefaultJournalGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "journal"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 1
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *JournalWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).Warn("journal stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if p.handleMsg(ctx, msg) {
					_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
				}
			}
		}
	}
}

// handleMsg reports whether msg is finished with. Malformed entries are
// acknowledged and dropped; storage failures stay pending for redelivery.
func (p *JournalWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	log := p.Logger.WithField("redis_id", msg.ID)

	raw, _ := msg.Values["entry"].(string)
	if raw == "" {
		log.Warn("journal message without entry")
		return true
	}
	var e services.AnswerEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		log.WithError(err).Warn("journal entry decode failed")
		return true
	}
	if e.ID == "" {
		// stable per message so a redelivery does not duplicate the row
		e.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Stream+"/"+msg.ID)).String()
	}

	log = log.WithFields(logrus.Fields{"interview_id": e.InterviewID, "turn_id": e.TurnID})
	if err := p.Journal.Record(ctx, e); err != nil {
		log.WithError(err).Error("journal insert failed")
		return false
	}
	log.Debug("answer journaled")
	return true
}
