package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultPublishConcurrency  = 4
	defaultPublishTargetBudget = 30 * time.Second
)

// Publish fans one content request out to every requested target account.
// Targets are isolated from each other: one platform rejecting the post, or
// timing out, never prevents the remaining targets from being attempted.
// The outcome always carries exactly one result per requested target, in
// request order.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (outcome PublishOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"workspace_id": strings.TrimSpace(req.WorkspaceID),
		"target_count": len(req.TargetAccountIDs),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "publish", err, fields)
	}()

	if s == nil {
		return PublishOutcome{}, fmt.Errorf("core: service is nil")
	}

	if err = s.authenticatePublish(ctx, req); err != nil {
		return PublishOutcome{}, err
	}
	if err = s.validatePublish(req); err != nil {
		return PublishOutcome{}, err
	}

	targets, loadErr := s.loadPublishTargets(ctx, req)
	if loadErr != nil {
		err = loadErr
		return PublishOutcome{}, err
	}

	results := s.dispatchTargets(ctx, req, targets)
	outcome = summarizeResults(results)
	fields["status"] = string(outcome.Status)
	fields["succeeded"] = outcome.Summary.Succeeded
	fields["failed"] = outcome.Summary.Failed

	s.recordPublishAudit(ctx, req, outcome)
	return outcome, nil
}

func (s *Service) authenticatePublish(ctx context.Context, req PublishRequest) error {
	if ValidateIdentifier(req.ActorID) != nil {
		return s.mapError(fmt.Errorf("core: request is unauthenticated"))
	}
	if err := ValidateIdentifier(req.WorkspaceID); err != nil {
		return s.mapError(err)
	}
	if s.authorizer != nil {
		allowed, err := s.authorizer.CanPublish(ctx, strings.TrimSpace(req.ActorID), strings.TrimSpace(req.WorkspaceID))
		if err != nil {
			return s.mapError(err)
		}
		if !allowed {
			return s.mapError(fmt.Errorf("core: actor is not allowed to publish in this workspace"))
		}
	}
	return nil
}

func (s *Service) validatePublish(req PublishRequest) error {
	if err := ValidateContent(req.Content, s.config.Publish.MaxContentLength); err != nil {
		return s.mapError(err)
	}
	if err := ValidateTargets(req.TargetAccountIDs, s.config.Publish.MaxTargets); err != nil {
		return s.mapError(err)
	}
	if strings.TrimSpace(req.LinkURL) != "" {
		if _, err := ValidateExternalURL(req.LinkURL); err != nil {
			return s.mapError(err)
		}
	}
	if strings.TrimSpace(req.MediaURL) != "" {
		if _, err := ValidateExternalURL(req.MediaURL); err != nil {
			return s.mapError(err)
		}
	}
	return nil
}

// publishTarget pairs a requested account id with what the store resolved
// for it. A nil account means the id did not resolve to a connected account
// in the workspace; the target still gets a result.
type publishTarget struct {
	accountID string
	account   *Account
}

func (s *Service) loadPublishTargets(ctx context.Context, req PublishRequest) ([]publishTarget, error) {
	if s.accountStore == nil {
		return nil, s.mapError(fmt.Errorf("core: account store is not configured"))
	}

	requested := make([]string, 0, len(req.TargetAccountIDs))
	for _, id := range req.TargetAccountIDs {
		requested = append(requested, strings.TrimSpace(id))
	}

	accounts, err := s.accountStore.ListForPublish(ctx, strings.TrimSpace(req.WorkspaceID), requested)
	if err != nil {
		return nil, s.mapError(err)
	}
	byID := make(map[string]Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}

	targets := make([]publishTarget, 0, len(requested))
	resolved := 0
	for _, id := range requested {
		target := publishTarget{accountID: id}
		if account, ok := byID[id]; ok && account.Status == AccountStatusConnected {
			copied := account
			target.account = &copied
			resolved++
		}
		targets = append(targets, target)
	}
	if resolved == 0 {
		return nil, s.mapError(fmt.Errorf("core: no valid accounts among the requested targets"))
	}
	return targets, nil
}

// dispatchTargets runs the fan-out under a bounded worker pool. Each target
// gets its own deadline so a hung platform call cannot starve the rest.
func (s *Service) dispatchTargets(ctx context.Context, req PublishRequest, targets []publishTarget) []PublishResult {
	concurrency := s.config.Publish.Concurrency
	if concurrency <= 0 {
		concurrency = defaultPublishConcurrency
	}
	budget := s.config.Publish.TargetTimeout
	if budget <= 0 {
		budget = defaultPublishTargetBudget
	}

	results := make([]PublishResult, len(targets))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for index, target := range targets {
		wg.Add(1)
		go func(index int, target publishTarget) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			targetCtx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			results[index] = s.publishToTarget(targetCtx, req, target)
		}(index, target)
	}
	wg.Wait()
	return results
}

func (s *Service) publishToTarget(ctx context.Context, req PublishRequest, target publishTarget) PublishResult {
	result := PublishResult{AccountID: target.accountID}
	if target.account == nil {
		result.ErrorCode = PublishErrorNotConnected
		result.ErrorMessage = "account is not connected in this workspace"
		return result
	}
	account := *target.account
	result.ProviderID = account.ProviderID

	provider, err := s.resolveProvider(account.ProviderID)
	if err != nil {
		result.ErrorCode = PublishErrorNotConnected
		result.ErrorMessage = err.Error()
		return result
	}

	if err := ValidateForConstraints(req.Content, req.LinkURL, req.MediaURL, provider.Constraints()); err != nil {
		var targetErr *TargetValidationError
		if errors.As(err, &targetErr) {
			result.ErrorCode = targetErr.Code
			result.ErrorMessage = targetErr.Message
			return result
		}
		result.ErrorCode = PublishErrorPublishFailed
		result.ErrorMessage = err.Error()
		return result
	}

	credential, err := s.activeCredential(ctx, account.ID)
	if err != nil || strings.TrimSpace(credential.AccessToken) == "" {
		result.ErrorCode = PublishErrorNoAccessToken
		result.ErrorMessage = "no usable access token for account"
		return result
	}

	receipt, err := provider.Publish(ctx, PublishInstruction{
		Account:    account,
		Credential: credential,
		Content:    req.Content,
		LinkURL:    strings.TrimSpace(req.LinkURL),
		MediaURL:   strings.TrimSpace(req.MediaURL),
		MediaType:  strings.TrimSpace(req.MediaType),
	})
	if err != nil {
		result.ErrorCode, result.ErrorMessage = classifyPublishError(err)
		return result
	}

	result.Success = true
	result.PostID = receipt.PostID
	result.PostURL = receipt.PostURL
	return result
}

func (s *Service) activeCredential(ctx context.Context, accountID string) (ActiveCredential, error) {
	if s.credentialStore == nil {
		return ActiveCredential{}, fmt.Errorf("core: credential store is not configured")
	}
	credential, err := s.credentialStore.GetActiveByAccount(ctx, accountID)
	if err != nil {
		return ActiveCredential{}, err
	}
	if credential.Status != CredentialStatusActive {
		return ActiveCredential{}, fmt.Errorf("core: credential for account %q is %s", accountID, credential.Status)
	}
	return credentialToActive(credential), nil
}

func classifyPublishError(err error) (code string, message string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return PublishErrorTimeout, "platform call exceeded its time budget"
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		code = strings.TrimSpace(providerErr.Code)
		if code == "" {
			code = PublishErrorPublishFailed
		}
		return code, providerErr.Message
	}
	return PublishErrorPublishFailed, err.Error()
}

func summarizeResults(results []PublishResult) PublishOutcome {
	summary := PublishSummary{Total: len(results)}
	for _, result := range results {
		if result.Success {
			summary.Succeeded++
			continue
		}
		summary.Failed++
	}

	status := PublishStatusPartial
	switch {
	case summary.Failed == 0:
		status = PublishStatusPublished
	case summary.Succeeded == 0:
		status = PublishStatusFailed
	}
	return PublishOutcome{
		Status:  status,
		Results: results,
		Summary: summary,
	}
}

// recordPublishAudit writes the audit row for a completed fan-out. The write
// is best effort: the caller already holds the real outcome, and a reporting
// failure must not convert a delivered post into an error response.
func (s *Service) recordPublishAudit(ctx context.Context, req PublishRequest, outcome PublishOutcome) {
	if s.auditStore == nil {
		return
	}
	tallies := make(map[string]ProviderOutcome, len(outcome.Results))
	for _, result := range outcome.Results {
		id := strings.TrimSpace(result.ProviderID)
		if id == "" {
			continue
		}
		tally := tallies[id]
		if result.Success {
			tally.Succeeded++
		} else {
			tally.Failed++
		}
		tallies[id] = tally
	}
	providerIDs := make([]string, 0, len(tallies))
	for id := range tallies {
		providerIDs = append(providerIDs, id)
	}
	sort.Strings(providerIDs)

	entry := PublishAuditEntry{
		WorkspaceID:      strings.TrimSpace(req.WorkspaceID),
		ActorID:          strings.TrimSpace(req.ActorID),
		Status:           outcome.Status,
		Total:            outcome.Summary.Total,
		Succeeded:        outcome.Summary.Succeeded,
		Failed:           outcome.Summary.Failed,
		Providers:        providerIDs,
		ProviderOutcomes: tallies,
	}
	if err := s.auditStore.Record(ctx, entry); err != nil {
		s.logError(ctx, "publish audit record failed", map[string]any{
			"workspace_id": entry.WorkspaceID,
			"error":        err.Error(),
		})
	}
}
