package service

import (
	"context"
	"testing"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthorizerFixture(t *testing.T) (Authorizer, *model.Staff) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw-1234"), bcrypt.MinCost)
	require.NoError(t, err)
	sup := &model.Staff{ID: uuid.New(), Username: "sup", Name: "Sup", PasswordHash: string(hash), Role: model.RoleSupervisor, Active: true}
	cashier := &model.Staff{ID: uuid.New(), Username: "cash2", Name: "Other", PasswordHash: string(hash), Role: model.RoleCashier, Active: true}
	return NewAuthorizer(&stubStaff{users: []*model.Staff{sup, cashier}}), sup
}

func TestActor_Has(t *testing.T) {
	a := Actor{Role: model.RoleCashier}
	assert.True(t, a.Has(PermPaymentTake))
	assert.False(t, a.Has(PermOrderVoid))

	a.Permissions = []string{PermOrderVoid}
	assert.True(t, a.Has(PermOrderVoid))

	assert.True(t, Actor{Role: model.RoleManager}.Has(PermPaymentCancel))
	assert.False(t, Actor{Role: "guest"}.Has(PermOrderEdit))
}

func TestAuthorize(t *testing.T) {
	authz, sup := newAuthorizerFixture(t)
	cashier := Actor{ID: uuid.New(), Username: "ana", Role: model.RoleCashier}
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    Actor
		command  string
		override *dto.Override
		want     uuid.UUID
		wantErr  *apierror.Error
	}{
		{"granted", cashier, "addPayment", nil, cashier.ID, nil},
		{"unknown command", cashier, "teleport", nil, uuid.Nil, apierror.ErrInvalidRequest},
		{"not sensitive", Actor{ID: uuid.New(), Role: "guest"}, "addItem", nil, uuid.Nil, apierror.ErrPermissionDenied},
		{"needs escalation", cashier, "voidOrder", nil, uuid.Nil, apierror.ErrEscalationRequired},
		{"wrong password", cashier, "voidOrder", &dto.Override{Username: "sup", Password: "x"}, uuid.Nil, apierror.ErrOverrideRejected},
		{"unknown supervisor", cashier, "voidOrder", &dto.Override{Username: "ghost", Password: "pw-1234"}, uuid.Nil, apierror.ErrOverrideRejected},
		{"override lacks grant", cashier, "voidOrder", &dto.Override{Username: "cash2", Password: "pw-1234"}, uuid.Nil, apierror.ErrOverrideRejected},
		{"override accepted", cashier, "voidOrder", &dto.Override{Username: "sup", Password: "pw-1234"}, sup.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authz.Authorize(ctx, tt.actor, tt.command, tt.override)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandPolicies_CoverEveryCommand(t *testing.T) {
	commands := []string{
		"openOrder", "addItem", "removeItem", "relocateOrder",
		"applyItemDiscount", "applyOrderDiscount", "applyOrderSurcharge",
		"compItem", "uncompItem", "splitByItems", "splitByAmount",
		"startAaSplit", "payAaSplit", "addPayment", "completeOrder",
		"voidOrder", "cancelPayment", "redeemStamp", "cancelStampRedemption",
		"linkMember", "unlinkMember",
	}
	assert.Len(t, commandPolicies, len(commands))
	for _, c := range commands {
		_, ok := commandPolicies[c]
		assert.True(t, ok, c)
	}
}
