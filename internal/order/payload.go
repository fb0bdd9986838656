package order

import (
	"fmt"
	"strconv"

	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// BuildJob decodes a DO request's v3 spec metadata into the enclave Job
// the container-engine collaborator needs to run this order.
func BuildJob(do types.DORequest, orderID uint64, resultAddress, resultPrivateKey, registryDir string) (enclave.Job, error) {
	fields, err := types.ParseSpec(do.Metadata.Spec)
	if err != nil {
		return enclave.Job{}, fmt.Errorf("build job for order %d: %w", orderID, err)
	}

	return enclave.Job{
		OrderID:           strconv.FormatUint(orderID, 10),
		RegistryDir:       registryDir,
		ComposeCID:        fields.ComposeCID,
		ChallengeCID:      fields.ChallengeCID,
		ResultAddress:     resultAddress,
		ResultPrivateKey:  resultPrivateKey,
	}, nil
}

// PayloadRef and InputRef decompose the DO request's payload_hash and
// input_hash metadata fields into their storage kind and content id, so
// the caller knows which collaborator (IPFS vs bucket store) to fetch from.
func PayloadRef(do types.DORequest) (types.HashRef, error) {
	return types.ParseHashRef(do.Metadata.PayloadHash)
}

func InputRef(do types.DORequest) (types.HashRef, error) {
	return types.ParseHashRef(do.Metadata.InputHash)
}
