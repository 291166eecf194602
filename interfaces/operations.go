package interfaces

import (
	"errors"
	"fmt"
)

// Operation names a remote procedure exposed by the data room contract.
type Operation string

// The full remote procedure surface of the contract.
const (
	OpCreateSuperAdmin              Operation = "createSuperAdmin"
	OpCreateUserRequest             Operation = "createUserRequest"
	OpGetUserContent                Operation = "getUserContent"
	OpListUserRequests              Operation = "listUserRequests"
	OpApproveUserRequest            Operation = "approveUserRequest"
	OpResetIdentities               Operation = "resetIdentities"
	OpExportStorageServerPrivateKey Operation = "exportStorageServerPrivateKey"
	OpSetTokenIdentity              Operation = "setTokenIdentity"
	OpCreateDataRoom                Operation = "createDataRoom"
	OpUpdateDataRoom                Operation = "updateDataRoom"
	OpGetPublicKeys                 Operation = "getPublicKeys"
	OpGetFileUploadToken            Operation = "getFileUploadToken"
	OpListDataRooms                 Operation = "listDataRooms"
	OpGetDataRoomContent            Operation = "getDataRoomContent"
	OpImportKey                     Operation = "importKey"
	OpGetPublicKey                  Operation = "getPublicKey"
	OpSign                          Operation = "sign"
	OpVerify                        Operation = "verify"
)

// ErrUnknownOperation is returned when dispatching an operation the contract
// does not implement.
var ErrUnknownOperation = errors.New("unknown operation")

var knownOperations = map[Operation]struct{}{
	OpCreateSuperAdmin:              {},
	OpCreateUserRequest:             {},
	OpGetUserContent:                {},
	OpListUserRequests:              {},
	OpApproveUserRequest:            {},
	OpResetIdentities:               {},
	OpExportStorageServerPrivateKey: {},
	OpSetTokenIdentity:              {},
	OpCreateDataRoom:                {},
	OpUpdateDataRoom:                {},
	OpGetPublicKeys:                 {},
	OpGetFileUploadToken:            {},
	OpListDataRooms:                 {},
	OpGetDataRoomContent:            {},
	OpImportKey:                     {},
	OpGetPublicKey:                  {},
	OpSign:                          {},
	OpVerify:                        {},
}

// String returns the operation name.
func (op Operation) String() string {
	return string(op)
}

// Validate checks the operation is part of the contract surface.
func (op Operation) Validate() error {
	if _, ok := knownOperations[op]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, string(op))
	}
	return nil
}
