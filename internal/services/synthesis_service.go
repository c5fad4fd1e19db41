package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/cache"
	"github.com/yoockh/yoospeak-interview/internal/providers/tts"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type SynthesisService interface {
	Synthesize(ctx context.Context, text string) (tts.Speech, error)
}

type synthesisService struct {
	provider tts.Provider
	cache    cache.Cache
	ttl      time.Duration
	log      *logrus.Logger
}

// NewSynthesisService caches raw results by text; c may be nil.
func NewSynthesisService(provider tts.Provider, c cache.Cache, ttl time.Duration, log *logrus.Logger) SynthesisService {
	if log == nil {
		log = logrus.New()
	}
	return &synthesisService{provider: provider, cache: c, ttl: ttl, log: log}
}

func (s *synthesisService) Synthesize(ctx context.Context, text string) (tts.Speech, error) {
	const op = "SynthesisService.Synthesize"

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "text is required", nil)
	}

	key := synthesisKey(text)
	if s.cache != nil {
		var cached tts.Result
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.WithError(err).Debug("synthesis cache read failed")
		}
		if hit {
			if speech, err := tts.Resolve(&cached); err == nil {
				return speech, nil
			}
			_ = s.cache.Del(ctx, key)
		}
	}

	res, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return nil, utils.E(utils.CodeSynthesisFailed, op, "synthesis request failed", err)
	}
	speech, err := tts.Resolve(res)
	if err != nil {
		return nil, utils.E(utils.CodeSynthesisFailed, op, "synthesis result is not playable", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, res, s.ttl); err != nil {
			s.log.WithError(err).Debug("synthesis cache write failed")
		}
	}
	return speech, nil
}

func synthesisKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "tts:" + hex.EncodeToString(sum[:])
}
