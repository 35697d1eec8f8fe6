package service

import (
	"context"
	"slices"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/model"
	"settlepos/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Permission grants checked by the command validator.
const (
	PermOrderEdit       = "order.edit"
	PermPaymentTake     = "payment.take"
	PermStampRedeem     = "stamp.redeem"
	PermMemberLink      = "member.link"
	PermOrderVoid       = "order.void"
	PermItemComp        = "item.comp"
	PermDiscountManual  = "discount.manual"
	PermSurchargeManual = "surcharge.manual"
	PermPaymentCancel   = "payment.cancel"
)

var allPermissions = []string{
	PermOrderEdit, PermPaymentTake, PermStampRedeem, PermMemberLink,
	PermOrderVoid, PermItemComp, PermDiscountManual, PermSurchargeManual, PermPaymentCancel,
}

var roleGrants = map[string][]string{
	model.RoleCashier:    {PermOrderEdit, PermPaymentTake, PermStampRedeem, PermMemberLink},
	model.RoleSupervisor: allPermissions,
	model.RoleManager:    allPermissions,
}

// Actor is the authenticated staff member issuing a command, as carried by
// the access token.
type Actor struct {
	ID          uuid.UUID
	Username    string
	Role        string
	Permissions []string
}

// Has reports whether the role defaults or the extra grants include perm.
func (a Actor) Has(perm string) bool {
	return slices.Contains(roleGrants[a.Role], perm) || slices.Contains(a.Permissions, perm)
}

// commandPolicy is the permission a command needs. Sensitive commands accept
// a supervisor override when the actor lacks the grant.
type commandPolicy struct {
	permission string
	sensitive  bool
}

var commandPolicies = map[string]commandPolicy{
	"openOrder":             {PermOrderEdit, false},
	"addItem":               {PermOrderEdit, false},
	"removeItem":            {PermOrderEdit, false},
	"relocateOrder":         {PermOrderEdit, false},
	"applyItemDiscount":     {PermDiscountManual, true},
	"applyOrderDiscount":    {PermDiscountManual, true},
	"applyOrderSurcharge":   {PermSurchargeManual, true},
	"compItem":              {PermItemComp, true},
	"uncompItem":            {PermItemComp, true},
	"splitByItems":          {PermPaymentTake, false},
	"splitByAmount":         {PermPaymentTake, false},
	"startAaSplit":          {PermPaymentTake, false},
	"payAaSplit":            {PermPaymentTake, false},
	"addPayment":            {PermPaymentTake, false},
	"completeOrder":         {PermPaymentTake, false},
	"voidOrder":             {PermOrderVoid, true},
	"cancelPayment":         {PermPaymentCancel, true},
	"redeemStamp":           {PermStampRedeem, false},
	"cancelStampRedemption": {PermStampRedeem, false},
	"linkMember":            {PermMemberLink, false},
	"unlinkMember":          {PermMemberLink, false},
}

// Authorizer resolves who authorises a command: the actor when they hold the
// grant, otherwise a supervisor whose credentials were captured with it.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, command string, override *dto.Override) (uuid.UUID, error)
}

type authorizer struct {
	staff repository.StaffRepository
}

func NewAuthorizer(staff repository.StaffRepository) Authorizer {
	return &authorizer{staff: staff}
}

func (a *authorizer) Authorize(ctx context.Context, actor Actor, command string, override *dto.Override) (uuid.UUID, error) {
	policy, ok := commandPolicies[command]
	if !ok {
		return uuid.Nil, apierror.ErrInvalidRequest.With("unknown command %q", command)
	}
	if actor.Has(policy.permission) {
		return actor.ID, nil
	}
	if !policy.sensitive {
		return uuid.Nil, apierror.ErrPermissionDenied.With("%s lacks %s", actor.Username, policy.permission)
	}
	if override == nil {
		return uuid.Nil, apierror.ErrEscalationRequired.With("%s needs %s", command, policy.permission)
	}

	sup, err := a.staff.FindByUsername(ctx, override.Username)
	if err != nil || !sup.Active {
		return uuid.Nil, apierror.ErrOverrideRejected.With("override user %q", override.Username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sup.PasswordHash), []byte(override.Password)); err != nil {
		return uuid.Nil, apierror.ErrOverrideRejected.With("override password for %q", override.Username)
	}
	grantee := Actor{ID: sup.ID, Username: sup.Username, Role: sup.Role, Permissions: sup.Permissions}
	if !grantee.Has(policy.permission) {
		return uuid.Nil, apierror.ErrOverrideRejected.With("%s lacks %s", sup.Username, policy.permission)
	}
	return sup.ID, nil
}
