package models

// DataSourceType is the closed set of external systems a Training job can
// scan, per original_source's validator_factory.
type DataSourceType string

const (
	DataSourceTypeGitHub           DataSourceType = "github"
	DataSourceTypeJira             DataSourceType = "jira"
	DataSourceTypeDatabricks       DataSourceType = "databricks"
	DataSourceTypeGoogleDrive      DataSourceType = "google_drive"
	DataSourceTypeSnowflake        DataSourceType = "snowflake"
	DataSourceTypeBigQuery         DataSourceType = "bigquery"
	DataSourceTypeGlue             DataSourceType = "glue"
	DataSourceTypeDataZone         DataSourceType = "datazone"
	DataSourceTypeRedash           DataSourceType = "redash"
	DataSourceTypeDBT              DataSourceType = "dbt"
	DataSourceTypeLooker           DataSourceType = "looker"
	DataSourceTypeDataHub          DataSourceType = "datahub"
	DataSourceTypeAirflow          DataSourceType = "airflow"
	DataSourceTypeS3               DataSourceType = "s3"
	DataSourceTypeAzureBlobStorage DataSourceType = "azure_blob_storage"
	DataSourceTypeAzureDataFactory DataSourceType = "azure_data_factory"
	DataSourceTypeWebfetch         DataSourceType = "webfetch"
	DataSourceTypeAtlan            DataSourceType = "atlan"
)

// DataSourceStatus tracks whether a data source's credentials have been
// validated since creation or last edit.
type DataSourceStatus string

const (
	DataSourceStatusPending DataSourceStatus = "pending"
	DataSourceStatusValid   DataSourceStatus = "valid"
	DataSourceStatusInvalid DataSourceStatus = "invalid"
)

// DataSource belongs to exactly one Project and names one external system a
// Training job can scan. Credentials live in Config, resolved per-provider
// by pkg/providers.CredentialFetcher.
type DataSource struct {
	Base
	ProjectID string           `json:"project_id"`
	Name      string           `json:"name"`
	Type      DataSourceType   `json:"type"`
	Config    map[string]any   `json:"config"`
	Status    DataSourceStatus `json:"status"`
}

// CollectionDataSources is the Store collection name for DataSource documents.
const CollectionDataSources = "data_sources"
