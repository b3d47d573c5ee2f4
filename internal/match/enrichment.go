package match

import (
	"strings"

	"TechHub-Embassy/internal/project"
)

// cloudBOM 列出各云偏好对应的基础设施物料。监控类条目为可选项。
var cloudBOM = map[string][]project.BOMItem{
	"aws": {
		{ResourceID: "infra-aws-account", Title: "AWS Account", Capability: "infrastructure", Quantity: 1, Required: true},
		{ResourceID: "infra-aws-codepipeline", Title: "CodePipeline", Capability: "tooling", Quantity: 1, Required: true},
		{ResourceID: "infra-aws-cloudwatch", Title: "CloudWatch", Capability: "operations", Quantity: 1},
	},
	"azure": {
		{ResourceID: "infra-azure-subscription", Title: "Azure Subscription", Capability: "infrastructure", Quantity: 1, Required: true},
		{ResourceID: "infra-azure-devops", Title: "Azure DevOps", Capability: "tooling", Quantity: 1, Required: true},
		{ResourceID: "infra-azure-monitor", Title: "Azure Monitor", Capability: "operations", Quantity: 1},
	},
	"gcp": {
		{ResourceID: "infra-gcp-project", Title: "GCP Project", Capability: "infrastructure", Quantity: 1, Required: true},
		{ResourceID: "infra-gcp-cloudbuild", Title: "Cloud Build", Capability: "tooling", Quantity: 1, Required: true},
		{ResourceID: "infra-gcp-monitoring", Title: "Cloud Monitoring", Capability: "operations", Quantity: 1},
	},
}

// complianceBOM 按合规要求关键字映射到对应的合规物料。
var complianceBOM = map[string]project.BOMItem{
	"gdpr":  {ResourceID: "compliance-gdpr", Title: "GDPR Compliance Framework", Capability: "compliance", Quantity: 1, Required: true},
	"hipaa": {ResourceID: "compliance-hipaa", Title: "HIPAA Compliance Tools", Capability: "compliance", Quantity: 1, Required: true},
	"soc2":  {ResourceID: "compliance-soc2", Title: "SOC2 Audit Preparation", Capability: "compliance", Quantity: 1, Required: true},
	"pci":   {ResourceID: "compliance-pci", Title: "PCI-DSS Compliance Suite", Capability: "compliance", Quantity: 1, Required: true},
}

// complianceKeys 固定遍历顺序，保证追加结果可复现。
var complianceKeys = []string{"gdpr", "hipaa", "soc2", "pci"}

// enrichBOM 在资源物料之后追加云基础设施与合规条目。同一合规项
// 出现多次时只追加一次。
func enrichBOM(uc *project.UseCase, bom []project.BOMItem) []project.BOMItem {
	if pref := strings.ToLower(strings.TrimSpace(uc.CloudPreference)); pref != "" {
		bom = append(bom, cloudBOM[pref]...)
	}

	seen := make(map[string]struct{})
	for _, requirement := range uc.Constraints.Compliance {
		lowered := strings.ToLower(requirement)
		for _, key := range complianceKeys {
			if !strings.Contains(lowered, key) {
				continue
			}
			if _, done := seen[key]; done {
				continue
			}
			seen[key] = struct{}{}
			bom = append(bom, complianceBOM[key])
		}
	}
	return bom
}
