package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/observability"
)

type stage string

const (
	stageInput      stage = "input"
	stageModel      stage = "model"
	stageExtraction stage = "extraction"
	stagePolicy     stage = "policy"
	stageExecution  stage = "execution"
	stageInternal   stage = "internal"
)

// outcome is the settled result of one pipeline run plus what the
// interaction log needs to record about it.
type outcome struct {
	response    Response
	status      audit.Status
	sql         string
	resultCount int
	stage       stage
	err         error
}

func answered(kind ResponseType, text string) outcome {
	return outcome{
		response: Response{Success: true, Response: text, Type: kind},
		status:   audit.StatusConversational,
	}
}

func failed(at stage, err error, sql string) outcome {
	out := outcome{
		response: Response{Success: false, Type: TypeError},
		status:   audit.StatusError,
		sql:      sql,
		stage:    at,
		err:      err,
	}
	switch at {
	case stageInput:
		out.response.Error = "query_required"
		out.response.UserMessage = MessageQueryMissing
	case stageModel:
		out.response.Error = "assistant_unavailable"
		out.response.UserMessage = MessageUnavailable
	case stagePolicy:
		out.status = audit.StatusBlocked
		out.response.Error = "query_blocked"
		out.response.UserMessage = MessageReadOnly
	case stageExecution:
		out.response.Error = "query_failed"
		out.response.UserMessage = MessageQueryTrouble
	default:
		out.response.Error = "processing_failed"
		out.response.UserMessage = MessageGeneric
	}
	return out
}

func (s *Service) record(ctx context.Context, req Request, out outcome, elapsed time.Duration) {
	observability.ObserveAssistantRequest(string(out.response.Type), string(out.status), elapsed)
	if out.err != nil {
		observability.IncrementStageFailure(string(out.stage))
		if out.stage == stagePolicy {
			observability.IncrementSQLBlocked(nl2sql.PolicyReason(out.err))
		}
		s.logger.Warn("assistant request failed",
			"user_id", req.UserID,
			"stage", out.stage,
			"status", out.status,
			"error", out.err,
		)
	} else {
		s.logger.Info("assistant request answered",
			"user_id", req.UserID,
			"type", out.response.Type,
			"result_count", out.resultCount,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}

	if s.log == nil {
		return
	}
	entry := audit.Entry{
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Query:         req.Query,
		SQL:           audit.StringPtr(out.sql),
		ResponseType:  string(out.response.Type),
		ResultCount:   out.resultCount,
		ElapsedMillis: elapsed.Milliseconds(),
		Status:        out.status,
		CreatedAt:     s.now().UTC(),
	}
	if out.response.Success {
		entry.Response = audit.StringPtr(out.response.Response)
	}
	if out.err != nil {
		entry.ErrorDetail = audit.StringPtr(out.err.Error())
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.appendEntry(logCtx, entry); err != nil {
		observability.IncrementAuditWriteFailure()
		s.logger.Error("write interaction log", "user_id", req.UserID, "error", err)
	}
}

func (s *Service) appendEntry(ctx context.Context, entry audit.Entry) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("interaction log panicked: %v", recovered)
		}
	}()
	if err := s.log.Append(ctx, entry); err != nil {
		return err
	}
	return nil
}
