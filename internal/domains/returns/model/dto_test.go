package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUpdateStatusRequestValidate(t *testing.T) {
	assert.NoError(t, UpdateStatusRequest{Status: "approved"}.Validate())
	assert.NoError(t, UpdateStatusRequest{Status: "refunded"}.Validate())

	// The partial path has its own endpoint; it is not reachable as a
	// plain status update
	assert.Error(t, UpdateStatusRequest{Status: "partially_refunded"}.Validate())
	assert.Error(t, UpdateStatusRequest{Status: "requested"}.Validate())
	assert.Error(t, UpdateStatusRequest{Status: ""}.Validate())

	agent := &PickupAgentInput{AgentID: "agent-7", Name: "Ravi Kumar", Phone: "+919900112233"}
	assert.NoError(t, UpdateStatusRequest{Status: "pickup_assigned", PickupAgent: agent}.Validate())
	assert.Error(t, UpdateStatusRequest{
		Status:      "pickup_assigned",
		PickupAgent: &PickupAgentInput{AgentID: "agent-7"},
	}.Validate())
}

func TestVerifyOtpRequestValidate(t *testing.T) {
	assert.NoError(t, VerifyOtpRequest{Code: "1234"}.Validate())
	assert.NoError(t, VerifyOtpRequest{Code: "0042"}.Validate())
	assert.Error(t, VerifyOtpRequest{Code: "123"}.Validate())
	assert.Error(t, VerifyOtpRequest{Code: "12345"}.Validate())
	assert.Error(t, VerifyOtpRequest{Code: "12a4"}.Validate())
	assert.Error(t, VerifyOtpRequest{}.Validate())
}

func TestCreateReturnRequestValidate(t *testing.T) {
	valid := CreateReturnRequest{
		OrderID: uuid.New(),
		Items:   []CreateReturnItem{{ProductID: uuid.New(), Quantity: 1, Reason: "damaged spine"}},
	}
	assert.NoError(t, valid.Validate())

	noItems := valid
	noItems.Items = nil
	assert.Error(t, noItems.Validate())

	shortReason := valid
	shortReason.Items = []CreateReturnItem{{ProductID: uuid.New(), Quantity: 1, Reason: "no"}}
	assert.Error(t, shortReason.Validate())

	badMethod := valid
	badMethod.RefundPreference = &RefundPreference{Method: "cash"}
	assert.Error(t, badMethod.Validate())
}

func TestListReturnsRequestValidate(t *testing.T) {
	req := ListReturnsRequest{}
	assert.NoError(t, req.Validate())
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 20, req.Limit)

	req = ListReturnsRequest{Page: 3, Limit: 500, Status: "received"}
	assert.NoError(t, req.Validate())
	assert.Equal(t, 20, req.Limit, "oversized limit falls back to the default")

	req = ListReturnsRequest{Status: "shipped"}
	assert.Error(t, req.Validate())
}
