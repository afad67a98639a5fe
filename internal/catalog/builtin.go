package catalog

const (
	stepReceptionDev     = "CG002 - Reception Control (Dev)"
	stepReception        = "CG002 - Reception Control"
	stepReceptionTwist   = "Reception Control TWIST v1"
	stepReceptionNoPlace = "Reception Control no placement v1"
	stepReceptionRNA     = "Reception Control (RNA) v1"

	stepAggregateLibDev   = "CG002 - Aggregate QC (Library Validation) (Dev)"
	stepAggregateLib      = "CG002 - Aggregate QC (Library Validation)"
	stepAggregateLibTwist = "Aggregate QC (Library Validation) TWIST v1"
	stepAggregateLibRNA   = "Aggregate QC (Library Validation) (RNA) v2"
	stepAggregateLibPlain = "Aggregate QC (Library Validation)"
	stepAggregateDNA      = "CG002 - Aggregate QC (DNA)"

	stepDelivery   = "CG002 - Delivery"
	stepDeliveryV1 = "Delivery v1"

	stepHiSeqX   = "CG002 - Illumina Sequencing (HiSeq X)"
	stepSBS      = "CG002 - Illumina Sequencing (Illumina SBS)"
	stepNovaSeq  = "AUTOMATED - NovaSeq Run"
	stepTruSeqPF = "CG002 - End repair Size selection A-tailing and Adapter ligation (TruSeq PCR-free DNA)"

	stepHybridizeSS    = "obsolete_CG002 - Hybridize Library  (SS XT)"
	stepHybridizeTwist = "Hybridize Library TWIST v1"

	attrArrived     = "date arrived at clinical genomics"
	attrDelivered   = "Date delivered"
	attrFinishDate  = "Finish Date"
	attrConcNM      = "Concentration (nM)"
	attrSize        = "Size (bp)"
	attrAverageSize = "Average Size (bp)"
)

// V1 returns the step tables of the first clinical LIMS schema. Each call
// returns a fresh value that callers may modify.
func V1() *Catalog {
	return &Catalog{
		Version: "v1",
		Events: map[Event]EventSteps{
			EventReceived: {Steps: []StepAttribute{
				{Step: stepReceptionDev, Attribute: attrArrived},
				{Step: stepReception, Attribute: attrArrived},
				{Step: stepReceptionTwist, Attribute: attrArrived},
				{Step: stepReceptionNoPlace, Attribute: attrArrived},
				{Step: stepReceptionRNA, Attribute: attrArrived},
			}},
			EventPrepared: {Steps: []StepAttribute{
				{Step: stepAggregateLibDev},
				{Step: stepAggregateLib},
				{Step: stepAggregateLibTwist},
				{Step: stepAggregateLibRNA},
				{Step: stepAggregateLibPlain},
			}},
			EventSequenced: {
				Steps: []StepAttribute{
					{Step: stepHiSeqX, Attribute: attrFinishDate},
					{Step: stepSBS, Attribute: attrFinishDate},
					{Step: stepNovaSeq},
				},
				QCAttribute: "Passed Sequencing QC",
			},
			EventDelivered: {
				Steps: []StepAttribute{
					{Step: stepDelivery, Attribute: attrDelivered},
					{Step: stepDeliveryV1, Attribute: attrDelivered},
				},
				ArtifactType: "Analyte",
			},
		},
		Methods: map[MethodCategory][]MethodStep{
			MethodPrep: {
				{Step: stepTruSeqPF, NumberAttribute: "Method document", VersionAttribute: "Method document version"},
				{Step: stepHybridizeSS, NumberAttribute: "Method document", VersionAttribute: "Method document versio"},
				{Step: "CG002 - Microbial Library Prep (Nextera)", NumberAttribute: "Method", VersionAttribute: "Method Version"},
				{Step: "End-Repair and A-tailing TWIST v1", NumberAttribute: "Method document", VersionAttribute: "Document version"},
			},
			MethodSequencing: {
				{Step: "CG002 - Cluster Generation (HiSeq X)", NumberAttribute: "Method", VersionAttribute: "Version"},
				{Step: "CG002 - Cluster Generation (Illumina SBS)", NumberAttribute: "Method Document 1", VersionAttribute: "Document 1 Version"},
			},
			MethodDelivery: {
				{Step: stepDelivery, NumberAttribute: "Method Document", VersionAttribute: "Method Version"},
				{Step: stepDeliveryV1, NumberAttribute: "Method Document", VersionAttribute: "Method Version"},
			},
		},
		MethodNames: map[string]string{
			"1464": "Automated TruSeq DNA PCR-free library preparation method",
			"1317": "HiSeq X Sequencing method at Clinical Genomics",
			"1383": "MIP analysis for Whole genome and Exome",
			"1717": "NxSeq® AmpFREE Low DNA Library Kit (Lucigen)",
			"1060": "Raw data delivery",
			"1036": "HiSeq 2500 Rapid Run sequencing",
			"1314": "Automated SureSelect XT Target Enrichment for Illumina sequencing",
			"1518": "200 ng input Manual SureSelect XT Target Enrichment",
			"1079": "Manuel SureSelect XT Target Enrichment for Illumina sequencing",
			"1879": "Method - Manual Twist Target Enrichment",
			"1830": "NovaSeq 6000 Sequencing method",
		},
		CaptureKit: []StepAttribute{
			{Step: stepHybridizeSS, Attribute: "SureSelect capture library/libraries used"},
			{Step: stepHybridizeTwist, Attribute: "Bait Set"},
		},
		CaptureKitType: "Analyte",
		Defrosts: DefrostConfig{
			LotStep:                stepTruSeqPF,
			LotAttribute:           "Lot no: TruSeq DNA PCR-Free Sample Prep Kit",
			ConcentrationStep:      stepAggregateLib,
			ConcentrationAttribute: attrConcNM,
			AppTags:                []string{"WGSPCF", "WGTPCF", "WGLPCF"},
		},
		FinalAmount: AmountConfig{
			AmountStep:             stepAggregateDNA,
			AmountAttribute:        "Amount (ng)",
			ConcentrationStep:      stepAggregateLib,
			ConcentrationAttribute: attrConcNM,
			AppTags:                []string{"WGSLIF", "WGTLIF", "WGLLIF"},
		},
		Microbial: MicrobialConfig{
			ConcentrationStep:      stepAggregateLib,
			ConcentrationAttribute: attrConcNM,
			AppTag:                 "NX",
		},
		LibrarySize: map[HybPhase]map[Workflow]SizeConfig{
			PreHyb: {
				WorkflowTwist: {
					SizeSteps:       []string{"pool samples TWIST v1"},
					StageAttributes: map[string]string{"3999": attrSize, "2176": attrAverageSize},
				},
				WorkflowSureSelect: {
					SizeSteps:     []string{"CG002 - Amplify Adapter-Ligated Library (SS XT)"},
					SizeAttribute: attrSize,
					AppTags:       []string{"EXO", "EFT", "PAN", "PAL"},
				},
			},
			PostHyb: {
				WorkflowTwist: {
					SizeSteps:       []string{"CG002 - Sort HiSeq Samples"},
					StageAttributes: map[string]string{"4005": attrSize, "2182": attrAverageSize},
				},
				WorkflowSureSelect: {
					SizeSteps:     []string{"CG002 - Amplify Captured Libraries to Add Index Tags (SS XT)"},
					SizeAttribute: attrSize,
					AppTags:       []string{"EXO", "EFT", "PAN", "PAL"},
				},
			},
		},
		SampleAttributes: SampleAttributes{
			ApplicationTag: "Sequencing Analysis",
			CaptureKit:     "Capture Library version",
			Report: map[string]string{
				"family":        "familyID",
				"strain":        "Strain",
				"source":        "Source",
				"customer":      "customer",
				"priority":      "priority",
				"initial_qc":    "Passed Initial QC",
				"library_qc":    "Passed Library QC",
				"sequencing_qc": "Passed Sequencing QC",
			},
		},
	}
}
