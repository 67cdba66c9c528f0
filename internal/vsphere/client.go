package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/soap"
)

// Client wraps a vCenter session for maintenance mode transitions and
// host discovery.
type Client struct {
	vc *govmomi.Client
}

// Connect logs in to the vCenter at rawURL.
func Connect(ctx context.Context, rawURL, username, password string, insecure bool) (*Client, error) {
	u, err := soap.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse vCenter URL: %w", err)
	}
	u.User = url.UserPassword(username, password)

	vc, err := govmomi.NewClient(ctx, u, insecure)
	if err != nil {
		return nil, fmt.Errorf("connect to vCenter: %w", err)
	}
	return &Client{vc: vc}, nil
}

// Close logs out the session.
func (c *Client) Close(ctx context.Context) error {
	return c.vc.Logout(ctx)
}

func (c *Client) findHost(ctx context.Context, hostname string) (*object.HostSystem, error) {
	idx := object.NewSearchIndex(c.vc.Client)
	ref, err := idx.FindByDnsName(ctx, nil, hostname, false)
	if err != nil {
		return nil, fmt.Errorf("search for host %s: %w", hostname, err)
	}
	if host, ok := ref.(*object.HostSystem); ok {
		return host, nil
	}

	// Some hosts are registered by inventory name rather than DNS name.
	finder := find.NewFinder(c.vc.Client)
	host, err := finder.HostSystem(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("host %s not found in vCenter: %w", hostname, err)
	}
	return host, nil
}

func (c *Client) inMaintenance(ctx context.Context, host *object.HostSystem) (bool, error) {
	var moHost mo.HostSystem
	pc := property.DefaultCollector(c.vc.Client)
	if err := pc.RetrieveOne(ctx, host.Reference(), []string{"runtime.inMaintenanceMode"}, &moHost); err != nil {
		return false, fmt.Errorf("read maintenance state: %w", err)
	}
	return moHost.Runtime.InMaintenanceMode, nil
}

// EnterMaintenance puts the host into maintenance mode, evacuating VMs, and
// waits for the transition to finish. A host already in maintenance mode is
// left alone.
func (c *Client) EnterMaintenance(ctx context.Context, hostname string, timeout time.Duration) error {
	host, err := c.findHost(ctx, hostname)
	if err != nil {
		return err
	}

	already, err := c.inMaintenance(ctx, host)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	task, err := host.EnterMaintenanceMode(ctx, int32(timeout.Seconds()), true, nil)
	if err != nil {
		return fmt.Errorf("enter maintenance mode on %s: %w", hostname, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("enter maintenance mode on %s: %w", hostname, err)
	}
	return nil
}

// ExitMaintenance takes the host out of maintenance mode and waits for the
// transition. A host not in maintenance mode is left alone.
func (c *Client) ExitMaintenance(ctx context.Context, hostname string, timeout time.Duration) error {
	host, err := c.findHost(ctx, hostname)
	if err != nil {
		return err
	}

	in, err := c.inMaintenance(ctx, host)
	if err != nil {
		return err
	}
	if !in {
		return nil
	}

	task, err := host.ExitMaintenanceMode(ctx, int32(timeout.Seconds()))
	if err != nil {
		return fmt.Errorf("exit maintenance mode on %s: %w", hostname, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("exit maintenance mode on %s: %w", hostname, err)
	}
	return nil
}

// HostInfo is one ESXi host discovered from vCenter inventory.
type HostInfo struct {
	Name          string
	Cluster       string
	InMaintenance bool
}

// ListHosts enumerates every ESXi host visible to the session, with the
// name of its parent cluster or compute resource.
func (c *Client) ListHosts(ctx context.Context) ([]HostInfo, error) {
	finder := find.NewFinder(c.vc.Client)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		return nil, fmt.Errorf("find datacenter: %w", err)
	}
	finder.SetDatacenter(dc)

	hosts, err := finder.HostSystemList(ctx, "*")
	if err != nil {
		if _, ok := err.(*find.NotFoundError); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	pc := property.DefaultCollector(c.vc.Client)
	out := make([]HostInfo, 0, len(hosts))
	for _, h := range hosts {
		var moHost mo.HostSystem
		if err := pc.RetrieveOne(ctx, h.Reference(), []string{"name", "parent", "runtime.inMaintenanceMode"}, &moHost); err != nil {
			return nil, fmt.Errorf("read host %s: %w", h.Name(), err)
		}

		info := HostInfo{Name: moHost.Name, InMaintenance: moHost.Runtime.InMaintenanceMode}
		if moHost.Parent != nil {
			var parent mo.ManagedEntity
			if err := pc.RetrieveOne(ctx, *moHost.Parent, []string{"name"}, &parent); err == nil {
				info.Cluster = parent.Name
			}
		}
		out = append(out, info)
	}
	return out, nil
}
