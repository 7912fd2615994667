package sqlbackend

// commitRow is the CAS anchor: one row per app, updated in the same
// transaction as every override mutation so "UPDATE ... WHERE commit_token
// = ?" serves as the compare-and-set.
type commitRow struct {
	AppName     string `gorm:"column:app_name;primaryKey"`
	CommitToken string `gorm:"column:commit_token"`
}

func (commitRow) TableName() string { return "nfig_commits" }

// overrideRow mirrors values.OverrideValue, with SubAppID flattened to
// (subAppID, hasSubApp) so the column stays NULL-free for the unique index
// gorm's NULL-distinct semantics would otherwise trip over.
type overrideRow struct {
	ID             string  `gorm:"column:id;primaryKey"`
	AppName        string  `gorm:"column:app_name"`
	SettingName    string  `gorm:"column:setting_name"`
	SubAppID       int     `gorm:"column:sub_app_id"`
	HasSubApp      bool    `gorm:"column:has_sub_app"`
	DataCenter     int32   `gorm:"column:data_center"`
	ExpirationTime *string `gorm:"column:expiration_time"`
	RawValue       string  `gorm:"column:raw_value"`
}

func (overrideRow) TableName() string { return "nfig_overrides" }

// subAppRow is one registered sub-app (or the root, hasSubApp=false). Root
// registrations all share sub_app_id=0, disambiguated by HasSubApp.
type subAppRow struct {
	AppName    string `gorm:"column:app_name"`
	SubAppID   int    `gorm:"column:sub_app_id"`
	HasSubApp  bool   `gorm:"column:has_sub_app"`
	SubAppName string `gorm:"column:sub_app_name"`
}

func (subAppRow) TableName() string { return "nfig_sub_apps" }

// defaultRow is one published DefaultValue alternate for one sub-app.
type defaultRow struct {
	AppName         string `gorm:"column:app_name"`
	SubAppID        int    `gorm:"column:sub_app_id"`
	HasSubApp       bool   `gorm:"column:has_sub_app"`
	SettingName     string `gorm:"column:setting_name"`
	Idx             int    `gorm:"column:idx"`
	StringValue     string `gorm:"column:string_value"`
	Tier            int32  `gorm:"column:tier"`
	DataCenter      int32  `gorm:"column:data_center"`
	AllowsOverrides bool   `gorm:"column:allows_overrides"`
}

func (defaultRow) TableName() string { return "nfig_defaults" }

// metadataRow is one published SettingMetadata row.
type metadataRow struct {
	AppName               string `gorm:"column:app_name"`
	SettingName           string `gorm:"column:setting_name"`
	Description           string `gorm:"column:description"`
	TypeName              string `gorm:"column:type_name"`
	IsEncrypted           bool   `gorm:"column:is_encrypted"`
	IsEnum                bool   `gorm:"column:is_enum"`
	ConverterTypeName     string `gorm:"column:converter_type_name"`
	IsDefaultConverter    bool   `gorm:"column:is_default_converter"`
	ChangeRequiresRestart bool   `gorm:"column:change_requires_restart"`
}

func (metadataRow) TableName() string { return "nfig_metadata" }
