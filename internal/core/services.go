package core

// Services bundles the control-plane services behind one constructor.
type Services struct {
	Host          *HostService
	Group         *GroupService
	Schedule      *ScheduleService
	Job           *JobService
	Task          *TaskService
	FirmwareImage *FirmwareImageService
	VCenter       *VCenterService
	APIKey        *APIKeyService
	Dashboard     *DashboardService
}

// NewServices creates all services against one database handle.
// secretKeyBase64 is the AES key used for credentials at rest.
func NewServices(db DB, secretKeyBase64 string) *Services {
	return &Services{
		Host:          NewHostService(db),
		Group:         NewGroupService(db),
		Schedule:      NewScheduleService(db),
		Job:           NewJobService(db),
		Task:          NewTaskService(db),
		FirmwareImage: NewFirmwareImageService(db),
		VCenter:       NewVCenterService(db, secretKeyBase64),
		APIKey:        NewAPIKeyService(db),
		Dashboard:     NewDashboardService(db),
	}
}
