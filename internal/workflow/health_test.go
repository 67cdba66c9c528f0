package workflow

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/openfleet/maestro/internal/activity"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/vsphere"
)

type HealthWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *HealthWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *HealthWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *HealthWorkflowTestSuite) TestFleetHealth_RecordsMixedResults() {
	hosts := []model.Host{
		{ID: "test-host-1", Hostname: "esx01.example.com", BMCAddr: "10.0.0.1"},
		{ID: "test-host-2", Hostname: "esx02.example.com", BMCAddr: "10.0.0.2"},
	}

	s.env.OnActivity("ListHostsForHealthCheck", mock.Anything).Return(hosts, nil)
	s.env.OnActivity("CheckBMCHealth", mock.Anything, "10.0.0.1").
		Return(activity.BMCHealth{Reachable: true, Detail: "PowerEdge R740, power On"}, nil)
	s.env.OnActivity("CheckBMCHealth", mock.Anything, "10.0.0.2").
		Return(activity.BMCHealth{Reachable: false, Detail: "dial tcp: i/o timeout"}, nil)
	s.env.OnActivity("RecordHostHealth", mock.Anything, activity.RecordHostHealthParams{
		HostID: "test-host-1", Status: model.HostStatusOK, Message: "PowerEdge R740, power On",
	}).Return(nil)
	s.env.OnActivity("RecordHostHealth", mock.Anything, activity.RecordHostHealthParams{
		HostID: "test-host-2", Status: model.HostStatusError, Message: "dial tcp: i/o timeout",
	}).Return(nil)
	s.env.OnActivity("StaleSeen", mock.Anything, staleSeenCutoff).Return(int64(0), nil)

	s.env.ExecuteWorkflow(FleetHealthWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *HealthWorkflowTestSuite) TestDiscoverHosts_SyncsMatches() {
	vcenters := []model.VCenter{{ID: "test-vc-1", Name: "vc01"}}
	found := []vsphere.HostInfo{
		{Name: "esx01.example.com", Cluster: "prod"},
		{Name: "unmanaged.example.com", Cluster: "lab"},
	}

	s.env.OnActivity("ListVCenters", mock.Anything).Return(vcenters, nil)
	s.env.OnActivity("DiscoverHosts", mock.Anything, "vc01").Return(found, nil)
	s.env.OnActivity("SyncDiscoveredHost", mock.Anything, activity.SyncDiscoveredHostParams{
		Hostname: "esx01.example.com", VCenter: "vc01", Cluster: "prod",
	}).Return(true, nil)
	s.env.OnActivity("SyncDiscoveredHost", mock.Anything, activity.SyncDiscoveredHostParams{
		Hostname: "unmanaged.example.com", VCenter: "vc01", Cluster: "lab",
	}).Return(false, nil)

	s.env.ExecuteWorkflow(DiscoverHostsWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *HealthWorkflowTestSuite) TestDiscoverHosts_FallsBackToDefaultVCenter() {
	s.env.OnActivity("ListVCenters", mock.Anything).Return([]model.VCenter{}, nil)
	s.env.OnActivity("DiscoverHosts", mock.Anything, "").
		Return([]vsphere.HostInfo{{Name: "esx01.example.com", Cluster: "prod"}}, nil)
	s.env.OnActivity("SyncDiscoveredHost", mock.Anything, mock.Anything).Return(true, nil)

	s.env.ExecuteWorkflow(DiscoverHostsWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestHealthWorkflows(t *testing.T) {
	suite.Run(t, new(HealthWorkflowTestSuite))
}
