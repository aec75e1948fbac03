package provisioner

import (
	"context"
	"fmt"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/quota"
)

// DiskQuota applies the requested storage limit to the system user. The
// quota subsystem is frequently absent on hosting nodes, so this is the
// one best-effort step: an environment that cannot enforce quotas still
// gets a fully provisioned account.
type DiskQuota struct {
	controller *quota.Controller
}

// NewDiskQuota builds the quota step around a quota controller.
func NewDiskQuota(controller *quota.Controller) *DiskQuota {
	return &DiskQuota{controller: controller}
}

func (p *DiskQuota) Kind() interfaces.StepKind        { return interfaces.StepDiskQuota }
func (p *DiskQuota) Policy() interfaces.FailurePolicy { return interfaces.PolicyBestEffort }

// Provision applies the quota. Environmental refusal is reported as a
// skip message, not an error; only caller bugs fail the step.
func (p *DiskQuota) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	applied, err := p.controller.SetUserQuota(ctx, req.Username, req.StorageQuotaMB)
	if err != nil {
		return "", err
	}
	if !applied {
		return fmt.Sprintf("quota enforcement unavailable, %s left unlimited", req.Username), nil
	}
	return fmt.Sprintf("disk quota of %d MB applied to %s", req.StorageQuotaMB, req.Username), nil
}

// Deprovision lifts the quota again. Setting zero blocks through
// setquota means unlimited, but the user is usually removed outright, so
// this is a no-op beyond reporting.
func (p *DiskQuota) Deprovision(_ context.Context, req *interfaces.ProvisionRequest) (string, error) {
	return fmt.Sprintf("quota for %s released with the account", req.Username), nil
}
