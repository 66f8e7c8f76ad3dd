package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/filter"
	"tsgate/internal/filterpreset"
	pkgerrors "tsgate/pkg/errors"
)

func newFilterPresetService(t *testing.T, infra *TestInfra) *filterpreset.Service {
	t.Helper()
	repo := filterpreset.NewRepository(infra.PostgresDB)
	versioningRepo := filterpreset.NewVersioningRepository(infra.PostgresDB)
	svc, err := filterpreset.NewService(repo, versioningRepo, createTestLogger())
	require.NoError(t, err)
	return svc
}

func TestFilterPresetService_Create(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	preset, err := svc.Create(ctx, createTestPresetRequest("attachments_only", "attachedMessageId || attachedEventId", true))
	require.NoError(t, err)
	assert.NotEmpty(t, preset.ID)
	assert.Equal(t, "attachments_only", preset.Name)
	assert.True(t, preset.Enabled)
}

func TestFilterPresetService_Create_ValidationError_InvalidCEL(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	preset, err := svc.Create(ctx, createTestPresetRequest("broken", "invalid syntax!!!", true))
	assert.Error(t, err)
	assert.Nil(t, preset)
	assert.True(t, pkgerrors.IsInvalidRequest(err))
}

func TestFilterPresetService_Create_ValidationError_NonBoolExpression(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	preset, err := svc.Create(ctx, createTestPresetRequest("non_bool", "1 + 2", true))
	assert.Error(t, err)
	assert.Nil(t, preset)
	assert.True(t, pkgerrors.IsInvalidRequest(err))
}

func TestFilterPresetService_Get_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	preset, err := svc.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
	assert.Nil(t, preset)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFilterPresetService_List(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	_, err := svc.Create(ctx, createTestPresetRequest("preset_one", "messageType", true))
	require.NoError(t, err)
	time.Sleep(timestampDelay)
	_, err = svc.Create(ctx, createTestPresetRequest("preset_two", "parentEvent", true))
	require.NoError(t, err)

	presets, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, presets, 2)
}

func TestFilterPresetService_Update(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	created, err := svc.Create(ctx, createTestPresetRequest("preset", "messageType", true))
	require.NoError(t, err)

	newExpression := "parentEvent && !attachedEventIds"
	enabled := false
	updated, err := svc.Update(ctx, created.ID, filterpreset.UpdatePresetRequest{
		Expression: &newExpression,
		Enabled:    &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, newExpression, updated.Expression)
	assert.False(t, updated.Enabled)
}

func TestFilterPresetService_Update_ValidationError(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	created, err := svc.Create(ctx, createTestPresetRequest("preset", "messageType", true))
	require.NoError(t, err)

	bad := "invalid syntax!!!"
	updated, err := svc.Update(ctx, created.ID, filterpreset.UpdatePresetRequest{Expression: &bad})
	assert.Error(t, err)
	assert.Nil(t, updated)
	assert.True(t, pkgerrors.IsInvalidRequest(err))
}

func TestFilterPresetService_Update_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	newName := "renamed"
	updated, err := svc.Update(ctx, "00000000-0000-0000-0000-000000000000", filterpreset.UpdatePresetRequest{Name: &newName})
	assert.Error(t, err)
	assert.Nil(t, updated)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFilterPresetService_Delete(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	created, err := svc.Create(ctx, createTestPresetRequest("preset", "messageType", true))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFilterPresetService_Versioning(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	created, err := svc.Create(ctx, createTestPresetRequest("preset", "messageType", true))
	require.NoError(t, err)

	newName := "renamed"
	_, err = svc.Update(ctx, created.ID, filterpreset.UpdatePresetRequest{Name: &newName})
	require.NoError(t, err)

	versions, err := svc.Versions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, 1, versions[1].Version)
}

func TestFilterPresetService_AuditLogs(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	created, err := svc.Create(ctx, createTestPresetRequest("preset", "messageType", true))
	require.NoError(t, err)

	newName := "renamed"
	_, err = svc.Update(ctx, created.ID, filterpreset.UpdatePresetRequest{Name: &newName})
	require.NoError(t, err)

	logs, err := svc.AuditLogs(ctx, &created.ID, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(logs), 2)

	hasCreate, hasUpdate := false, false
	for _, log := range logs {
		if log.Action == "create" {
			hasCreate = true
		}
		if log.Action == "update" {
			hasUpdate = true
		}
	}
	assert.True(t, hasCreate)
	assert.True(t, hasUpdate)
}

func TestFilterPresetService_Evaluate(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	_, err := svc.Create(ctx, createTestPresetRequest("attached_not_parent", "attachedEventId && !parentEvent", true))
	require.NoError(t, err)

	matched, err := svc.Evaluate(ctx, "attached_not_parent", map[filter.Kind]bool{
		filter.KindAttachedEventId: true,
		filter.KindParentEvent:     false,
	})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = svc.Evaluate(ctx, "attached_not_parent", map[filter.Kind]bool{
		filter.KindAttachedEventId: true,
		filter.KindParentEvent:     true,
	})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestFilterPresetService_Evaluate_UnknownName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	matched, err := svc.Evaluate(ctx, "does_not_exist", map[filter.Kind]bool{})
	assert.Error(t, err)
	assert.False(t, matched)
	assert.True(t, pkgerrors.IsInvalidRequest(err))
}

func TestFilterPresetService_Evaluate_Disabled(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newFilterPresetService(t, infra)
	ctx := context.Background()

	_, err := svc.Create(ctx, createTestPresetRequest("disabled_preset", "messageType", false))
	require.NoError(t, err)

	matched, err := svc.Evaluate(ctx, "disabled_preset", map[filter.Kind]bool{filter.KindMessageType: true})
	assert.Error(t, err)
	assert.False(t, matched)
	assert.True(t, pkgerrors.IsInvalidRequest(err))
}
