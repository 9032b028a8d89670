package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/models"
	"github.com/cascacheck/cascacheck_backend/utils"
	"github.com/shopspring/decimal"
)

const soapItem = "Sabonete líquido disponível"

func TestChecklistLifecycleWithActionPlanReview(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "cascacheck_test")
	t.Setenv("RECURRENCE_RESET_ON_CONFORMING", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	adminCtx := utils.SetUserIdInContext(ctx, 1)
	adminCtx = utils.SetUserNameInContext(adminCtx, "Administrador")
	adminCtx = utils.SetUsernameInContext(adminCtx, "admin@test.local")
	adminCtx = utils.SetIsAdminInContext(adminCtx, true)

	store, err := models.CreateStore(adminCtx, &models.NewStore{Name: "Açaí Casca Asa Norte"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}

	collabCtx := utils.SetUserIdInContext(ctx, 2)
	collabCtx = utils.SetUserNameInContext(collabCtx, "Maria")
	collabCtx = utils.SetUsernameInContext(collabCtx, "maria@test.local")
	collabCtx = utils.SetIsAdminInContext(collabCtx, false)
	collabCtx = utils.SetStoreIdInContext(collabCtx, store.ID)

	// 1) Open a bathroom inspection; items start unanswered with no streak.
	checklist, err := models.CreateChecklist(collabCtx, &models.NewChecklist{
		Category: models.CategoryBanheiros,
		StoreId:  store.ID,
		Period:   models.PeriodManha,
	})
	if err != nil {
		t.Fatalf("CreateChecklist: %v", err)
	}
	if len(checklist.Items) != 7 {
		t.Fatalf("expected 7 bathroom items; got %d", len(checklist.Items))
	}
	for _, item := range checklist.Items {
		if item.Status != models.ItemStatusUnanswered {
			t.Fatalf("item %q starts as %q; want unanswered", item.Description, item.Status)
		}
		if item.RecurrenceCount != 0 {
			t.Fatalf("item %q starts with streak %d; want 0", item.Description, item.RecurrenceCount)
		}
	}

	// A collaborator bound to another store cannot read it.
	otherCtx := utils.SetUserIdInContext(ctx, 3)
	otherCtx = utils.SetUserNameInContext(otherCtx, "João")
	otherCtx = utils.SetIsAdminInContext(otherCtx, false)
	otherCtx = utils.SetStoreIdInContext(otherCtx, store.ID+999)
	if _, err := models.GetChecklist(otherCtx, checklist.ID); !models.IsAuthorizationError(err) {
		t.Fatalf("cross-store read: err = %v; want authorization error", err)
	}

	// 2) Submission requires every item answered.
	if _, err := models.SubmitChecklist(collabCtx, checklist.ID); err != models.ErrIncompleteChecklist {
		t.Fatalf("submit incomplete: err = %v; want ErrIncompleteChecklist", err)
	}

	// 3) A non-conforming answer needs a justification and rejects photos.
	var soap models.ChecklistItem
	for _, item := range checklist.Items {
		if item.Description == soapItem {
			soap = item
		}
	}
	if soap.ID == 0 {
		t.Fatalf("soap item missing from checklist")
	}
	if _, err := models.UpdateChecklistItem(collabCtx, checklist.ID, soap.ID, &models.UpdateChecklistItemInput{
		Status: models.ItemStatusNonConforming,
	}); !models.IsValidationError(err) {
		t.Fatalf("nao without justification: err = %v; want validation error", err)
	}
	if _, err := models.UpdateChecklistItem(collabCtx, checklist.ID, soap.ID, &models.UpdateChecklistItemInput{
		Status:        models.ItemStatusNonConforming,
		Justification: "sem sabonete no dispenser",
		PhotoUrl:      "stores/x/photo.jpg",
	}); !models.IsValidationError(err) {
		t.Fatalf("nao with photo: err = %v; want validation error", err)
	}

	updated, err := models.UpdateChecklistItem(collabCtx, checklist.ID, soap.ID, &models.UpdateChecklistItemInput{
		Status:        models.ItemStatusNonConforming,
		Justification: "sem sabonete no dispenser",
	})
	if err != nil {
		t.Fatalf("record nao: %v", err)
	}
	if updated.RecurrenceCount != 1 {
		t.Fatalf("first failure streak = %d; want 1", updated.RecurrenceCount)
	}
	if updated.RecordedAt == nil {
		t.Fatalf("recorded_at not stamped")
	}

	// Re-answering nao on the same item must not bump the streak again.
	updated, err = models.UpdateChecklistItem(collabCtx, checklist.ID, soap.ID, &models.UpdateChecklistItemInput{
		Status:        models.ItemStatusNonConforming,
		Justification: "sem sabonete no dispenser",
	})
	if err != nil {
		t.Fatalf("re-record nao: %v", err)
	}
	if count, err := models.GetRecurrenceCount(collabCtx, store.ID, soapItem); err != nil || count != 1 {
		t.Fatalf("streak after repeated answer = %d, %v; want 1", count, err)
	}

	// 4) Answer the rest as conforming and submit.
	for _, item := range checklist.Items {
		if item.ID == soap.ID {
			continue
		}
		if _, err := models.UpdateChecklistItem(collabCtx, checklist.ID, item.ID, &models.UpdateChecklistItemInput{
			Status: models.ItemStatusConforming,
		}); err != nil {
			t.Fatalf("record sim for %q: %v", item.Description, err)
		}
	}
	// Photo evidence merges idempotently, keyed by item id.
	var evidenceItem models.ChecklistItem
	for _, item := range checklist.Items {
		if item.ID != soap.ID {
			evidenceItem = item
			break
		}
	}
	photoURL := fmt.Sprintf("https://storage.googleapis.com/cascacheck-media/stores/%d/checklists/%d/items/%d.jpg",
		store.ID, checklist.ID, evidenceItem.ID)
	withPhoto, err := models.AttachItemPhoto(collabCtx, checklist.ID, evidenceItem.ID, photoURL)
	if err != nil {
		t.Fatalf("AttachItemPhoto: %v", err)
	}
	if withPhoto.PhotoUrl != photoURL {
		t.Fatalf("photo url = %q; want %q", withPhoto.PhotoUrl, photoURL)
	}
	withPhoto, err = models.AttachItemPhoto(collabCtx, checklist.ID, evidenceItem.ID, photoURL)
	if err != nil {
		t.Fatalf("AttachItemPhoto(repeat): %v", err)
	}
	if withPhoto.PhotoUrl != photoURL {
		t.Fatalf("repeated attach changed the photo url: %q", withPhoto.PhotoUrl)
	}

	submitted, err := models.SubmitChecklist(collabCtx, checklist.ID)
	if err != nil {
		t.Fatalf("SubmitChecklist: %v", err)
	}
	if !*submitted.Completed {
		t.Fatalf("checklist not marked completed")
	}
	// Completion is one-way; resubmission is a no-op.
	if _, err := models.SubmitChecklist(collabCtx, checklist.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := models.UpdateChecklistItem(collabCtx, checklist.ID, soap.ID, &models.UpdateChecklistItemInput{
		Status: models.ItemStatusConforming,
	}); !models.IsValidationError(err) {
		t.Fatalf("edit after completion: err = %v; want validation error", err)
	}

	// 5) The failed item sits on the deferred surface until a plan survives.
	open, err := models.GetOpenNonConformities(collabCtx, store.ID)
	if err != nil {
		t.Fatalf("GetOpenNonConformities: %v", err)
	}
	if len(open) != 1 || open[0].Description != soapItem {
		t.Fatalf("open non-conformities = %+v; want the soap item", open)
	}

	// 6) File a plan; a second one is blocked while the first is live.
	plan, err := models.CreateActionPlan(collabCtx, &models.NewActionPlan{
		ChecklistId:     checklist.ID,
		ChecklistItemId: soap.ID,
		Description:     "Comprar sabonete e reabastecer o dispenser",
	})
	if err != nil {
		t.Fatalf("CreateActionPlan: %v", err)
	}
	if plan.Status != models.ActionPlanStatusPending {
		t.Fatalf("new plan status = %q; want pending", plan.Status)
	}
	if _, err := models.CreateActionPlan(collabCtx, &models.NewActionPlan{
		ChecklistId:     checklist.ID,
		ChecklistItemId: soap.ID,
		Description:     "Outro plano",
	}); !models.IsValidationError(err) {
		t.Fatalf("duplicate plan: err = %v; want validation error", err)
	}

	// A plan filed today has aged zero days.
	queue, err := models.GetPendingActionPlans(adminCtx, 0)
	if err != nil {
		t.Fatalf("GetPendingActionPlans(fresh): %v", err)
	}
	if len(queue) != 1 || queue[0].DaysPending != 0 {
		t.Fatalf("fresh pending entry = %+v; want one row aged zero days", queue)
	}

	// The pending queue feeds the collaborator's alert.
	alert, err := models.CheckForAlerts(collabCtx)
	if err != nil {
		t.Fatalf("CheckForAlerts: %v", err)
	}
	if alert == nil || alert.Count != 1 {
		t.Fatalf("alert = %+v; want count 1", alert)
	}

	// 7) Review is admin-gated.
	if _, err := models.ReviewActionPlan(collabCtx, plan.ID, &models.ReviewActionPlanInput{
		Decision: models.ReviewDecisionApprove,
	}); !models.IsAuthorizationError(err) {
		t.Fatalf("collaborator review: err = %v; want authorization error", err)
	}

	rejected, err := models.ReviewActionPlan(adminCtx, plan.ID, &models.ReviewActionPlanInput{
		Decision: models.ReviewDecisionReject,
		Comment:  "plano insuficiente",
	})
	if err != nil {
		t.Fatalf("reject plan: %v", err)
	}
	if rejected.Status != models.ActionPlanStatusRejected {
		t.Fatalf("plan status = %q; want rejected", rejected.Status)
	}
	// A review is terminal for the plan itself.
	if _, err := models.ReviewActionPlan(adminCtx, plan.ID, &models.ReviewActionPlanInput{
		Decision: models.ReviewDecisionApprove,
	}); !models.IsValidationError(err) {
		t.Fatalf("re-review: err = %v; want validation error", err)
	}

	// 8) The rejected plan stays visible until a replacement is filed.
	queue, err = models.GetPendingActionPlans(adminCtx, 0)
	if err != nil {
		t.Fatalf("GetPendingActionPlans(rejected): %v", err)
	}
	if len(queue) != 1 || queue[0].Status != models.ActionPlanStatusRejected {
		t.Fatalf("queue after rejection = %+v; want the rejected plan", queue)
	}
	open, err = models.GetOpenNonConformities(collabCtx, store.ID)
	if err != nil {
		t.Fatalf("GetOpenNonConformities(rejected): %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("item must stay open while its plan is rejected")
	}

	// 9) Supersede with a new plan and approve it.
	replacement, err := models.CreateActionPlan(collabCtx, &models.NewActionPlan{
		ChecklistId:     checklist.ID,
		ChecklistItemId: soap.ID,
		Description:     "Comprar sabonete hoje e criar estoque mínimo",
	})
	if err != nil {
		t.Fatalf("CreateActionPlan(replacement): %v", err)
	}
	queue, err = models.GetPendingActionPlans(adminCtx, 0)
	if err != nil {
		t.Fatalf("GetPendingActionPlans(superseded): %v", err)
	}
	if len(queue) != 1 || queue[0].PlanId != replacement.ID {
		t.Fatalf("queue after supersession = %+v; want only the replacement", queue)
	}

	if _, err := models.ReviewActionPlan(adminCtx, replacement.ID, &models.ReviewActionPlanInput{
		Decision: models.ReviewDecisionApprove,
		Comment:  "ok",
	}); err != nil {
		t.Fatalf("approve replacement: %v", err)
	}
	queue, err = models.GetPendingActionPlans(adminCtx, 0)
	if err != nil {
		t.Fatalf("GetPendingActionPlans(approved): %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue after approval = %+v; want empty", queue)
	}
	open, err = models.GetOpenNonConformities(collabCtx, store.ID)
	if err != nil {
		t.Fatalf("GetOpenNonConformities(approved): %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("approved plan must close the deferred surface")
	}
	if alert, err := models.CheckForAlerts(collabCtx); err != nil || alert != nil {
		t.Fatalf("alert after approval = %+v, %v; want none", alert, err)
	}

	// 10) A second inspection inherits the streak and escalates it.
	second, err := models.CreateChecklist(collabCtx, &models.NewChecklist{
		Category: models.CategoryBanheiros,
		StoreId:  store.ID,
		Period:   models.PeriodTarde,
	})
	if err != nil {
		t.Fatalf("CreateChecklist(second): %v", err)
	}
	var secondSoap models.ChecklistItem
	for _, item := range second.Items {
		if item.Description == soapItem {
			secondSoap = item
		}
	}
	if secondSoap.RecurrenceCount != 1 {
		t.Fatalf("inherited streak = %d; want 1", secondSoap.RecurrenceCount)
	}

	updated, err = models.UpdateChecklistItem(collabCtx, second.ID, secondSoap.ID, &models.UpdateChecklistItemInput{
		Status:        models.ItemStatusNonConforming,
		Justification: "sem sabonete novamente",
	})
	if err != nil {
		t.Fatalf("record second nao: %v", err)
	}
	if updated.RecurrenceCount != 2 {
		t.Fatalf("second failure streak = %d; want 2", updated.RecurrenceCount)
	}
	if models.SeverityForCount(updated.RecurrenceCount) != models.SeverityCritical {
		t.Fatalf("two failures must band as critical")
	}

	// With reset disabled, answering sim leaves the streak alone, and a
	// re-entry into nao afterwards counts as a new failure: 2 -> 2 -> 3.
	if _, err := models.UpdateChecklistItem(collabCtx, second.ID, secondSoap.ID, &models.UpdateChecklistItemInput{
		Status: models.ItemStatusConforming,
	}); err != nil {
		t.Fatalf("toggle to sim: %v", err)
	}
	if count, err := models.GetRecurrenceCount(collabCtx, store.ID, soapItem); err != nil || count != 2 {
		t.Fatalf("streak after sim = %d, %v; want 2", count, err)
	}
	updated, err = models.UpdateChecklistItem(collabCtx, second.ID, secondSoap.ID, &models.UpdateChecklistItemInput{
		Status:        models.ItemStatusNonConforming,
		Justification: "sem sabonete de novo na mesma tarde",
	})
	if err != nil {
		t.Fatalf("toggle back to nao: %v", err)
	}
	if updated.RecurrenceCount != 3 {
		t.Fatalf("streak after re-entry = %d; want 3", updated.RecurrenceCount)
	}

	// 11) Reports reflect the recorded answers.
	lessons, err := models.GetLessonsLearned(adminCtx, 0)
	if err != nil {
		t.Fatalf("GetLessonsLearned: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("lessons = %+v; want one row", lessons)
	}
	if lessons[0].ItemDescription != soapItem || lessons[0].Count != 3 || lessons[0].Severity != models.SeverityCritical {
		t.Fatalf("lessons row = %+v; want soap item, count 3, critical", lessons[0])
	}

	// 6 sim + 1 nao on the first checklist, 1 nao on the second.
	compliance, err := models.GetComplianceReport(adminCtx, models.ComplianceReportFilter{})
	if err != nil {
		t.Fatalf("GetComplianceReport: %v", err)
	}
	if len(compliance) != 1 {
		t.Fatalf("compliance = %+v; want one store row", compliance)
	}
	row := compliance[0]
	if row.AnsweredItems != 8 || row.ConformingItems != 6 {
		t.Fatalf("compliance counts = %d/%d; want 6/8", row.ConformingItems, row.AnsweredItems)
	}
	if row.ComplianceRate.Cmp(decimal.NewFromInt(75)) != 0 {
		t.Fatalf("compliance rate = %s; want 75", row.ComplianceRate.String())
	}

	// 12) Concurrent verdicts on one plan: exactly one lands, the other is
	// told the plan is already reviewed.
	racePlan, err := models.CreateActionPlan(collabCtx, &models.NewActionPlan{
		ChecklistId:     second.ID,
		ChecklistItemId: secondSoap.ID,
		Description:     "Comprar sabonete para a tarde",
	})
	if err != nil {
		t.Fatalf("CreateActionPlan(race): %v", err)
	}

	decisions := []models.ReviewDecision{models.ReviewDecisionApprove, models.ReviewDecisionReject}
	reviewErrs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, decision := range decisions {
		wg.Add(1)
		go func(i int, decision models.ReviewDecision) {
			defer wg.Done()
			_, reviewErrs[i] = models.ReviewActionPlan(adminCtx, racePlan.ID, &models.ReviewActionPlanInput{
				Decision: decision,
			})
		}(i, decision)
	}
	wg.Wait()

	winner := -1
	for i, reviewErr := range reviewErrs {
		switch {
		case reviewErr == nil:
			if winner != -1 {
				t.Fatalf("both concurrent reviews succeeded")
			}
			winner = i
		case !models.IsValidationError(reviewErr):
			t.Fatalf("losing review: err = %v; want validation error", reviewErr)
		}
	}
	if winner == -1 {
		t.Fatalf("no concurrent review succeeded: %v", reviewErrs)
	}

	final, err := models.GetActionPlan(adminCtx, racePlan.ID)
	if err != nil {
		t.Fatalf("GetActionPlan(race): %v", err)
	}
	want := models.ActionPlanStatusApproved
	if decisions[winner] == models.ReviewDecisionReject {
		want = models.ActionPlanStatusRejected
	}
	if final.Status != want {
		t.Fatalf("final plan status = %q; want %q from the winning verdict", final.Status, want)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cascacheck-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cascacheck-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=cascacheck_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
