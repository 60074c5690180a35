package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/protocol"
	"github.com/amxpanel/amxpanel/internal/resource"
)

// Unsupported lists command prefixes that are recognised but not
// implemented.
var Unsupported = []string{"^ANI-", "^BCF-", "^BFB-", "^BMF-", "^FON-", "^BOR-", "^TEF-"}

// registerDefaults builds the table. Button commands come first because
// their free text may contain other prefixes; PPON- must precede ON-.
func (d *Dispatcher) registerDefaults() {
	// ---------------------------------------------------------------------
	// Button commands
	// ---------------------------------------------------------------------
	d.Register("^BAT-", d.appendText)
	d.Register("^TXT-", d.setText)
	d.Register("^BMP-", d.setBitmap)
	d.Register("^BSP-", d.setGeometry)
	d.Register("^ICO-", d.setIcon)
	d.Register("^CPF-", d.clearPageFlips)
	d.Register("^ENA-", d.setEnabled)
	d.Register("^SHO-", d.setShown)
	d.Register("^RAF-", d.addResource)
	d.Register("^RMF-", d.modifyResource)
	d.Register("^RFR-", d.refreshResource)
	d.Register("^RDF-", d.removeResource)
	for _, p := range Unsupported {
		d.Register(p, d.unsupported)
	}

	// ---------------------------------------------------------------------
	// Popups and pages
	// ---------------------------------------------------------------------
	d.Register("@PPN-", d.showPopup)
	d.Register("PPON-", d.showPopup)
	d.Register("@PPF-", d.hidePopup)
	d.Register("PPOF-", d.hidePopup)
	d.Register("@PPG-", d.togglePopup)
	d.Register("PPOG-", d.togglePopup)
	d.Register("@PPK-", d.closePopupOrGroup)
	d.Register("@PPX", d.hideAllPopups)
	d.Register("@PPA-", d.hidePopupsOnPage)
	d.Register("@PAGE-", d.showPage)
	d.Register("PAGE-", d.showPage)
	d.Register("@APG-", d.addToGroup)
	d.Register("@CPG-", d.clearGroup)

	// ---------------------------------------------------------------------
	// Channel and level feedback
	// ---------------------------------------------------------------------
	d.Register("LEVEL-", d.level)
	d.Register("OFF-", d.channelOff)
	d.Register("ON-", d.channelOn)
}

// popupArgs reads "name[;page]".
func popupArgs(cmd string) (name, page string) {
	return strings.TrimSpace(protocol.GetField(cmd, 0, ";")),
		strings.TrimSpace(protocol.GetField(cmd, 1, ";"))
}

func (d *Dispatcher) showPopup(ctx context.Context, _ int, cmd string) error {
	name, page := popupArgs(cmd)
	return d.panel.ShowPopup(ctx, name, page)
}

func (d *Dispatcher) hidePopup(_ context.Context, _ int, cmd string) error {
	name, page := popupArgs(cmd)
	return d.panel.HidePopup(name, page)
}

func (d *Dispatcher) togglePopup(ctx context.Context, _ int, cmd string) error {
	name, page := popupArgs(cmd)
	return d.panel.TogglePopup(ctx, name, page)
}

func (d *Dispatcher) closePopupOrGroup(_ context.Context, _ int, cmd string) error {
	name, _ := popupArgs(cmd)
	return d.panel.ClosePopupOrGroup(name)
}

func (d *Dispatcher) hideAllPopups(context.Context, int, string) error {
	d.panel.HideAllPopups()
	return nil
}

func (d *Dispatcher) hidePopupsOnPage(_ context.Context, _ int, cmd string) error {
	page, _ := popupArgs(cmd)
	d.panel.HidePopupsOnPage(page)
	return nil
}

func (d *Dispatcher) showPage(ctx context.Context, _ int, cmd string) error {
	name, _ := popupArgs(cmd)
	return d.panel.ShowPage(ctx, name)
}

func (d *Dispatcher) addToGroup(_ context.Context, _ int, cmd string) error {
	group, popup := popupArgs(cmd)
	if group == "" || popup == "" {
		return fmt.Errorf("%w: %q", ErrBadArgs, cmd)
	}
	return d.panel.AddToGroup(group, popup)
}

func (d *Dispatcher) clearGroup(_ context.Context, _ int, cmd string) error {
	group, _ := popupArgs(cmd)
	d.panel.ClearGroup(group)
	return nil
}

// buttonArgs reads "addr,inst" ranges shared by the button commands.
func buttonArgs(cmd string) (addrs, insts []int) {
	return protocol.GetRange(protocol.GetField(cmd, 0, ",")),
		protocol.GetRange(protocol.GetField(cmd, 1, ","))
}

func (d *Dispatcher) matched(cmd string, n int) error {
	if n == 0 {
		d.log.Debug("no button matched", "command", protocol.CommandToken(cmd), "addr", protocol.GetField(cmd, 0, ","))
	}
	return nil
}

func (d *Dispatcher) appendText(_ context.Context, port int, cmd string) error {
	addrs, insts := buttonArgs(cmd)
	return d.matched(cmd, d.panel.AppendText(port, addrs, insts, protocol.GetTail(cmd, 2, ",")))
}

func (d *Dispatcher) setText(_ context.Context, port int, cmd string) error {
	addrs, insts := buttonArgs(cmd)
	return d.matched(cmd, d.panel.SetText(port, addrs, insts, protocol.GetTail(cmd, 2, ",")))
}

func (d *Dispatcher) setBitmap(_ context.Context, port int, cmd string) error {
	addrs, insts := buttonArgs(cmd)
	return d.matched(cmd, d.panel.SetBitmap(port, addrs, insts, strings.TrimSpace(protocol.GetField(cmd, 2, ","))))
}

func (d *Dispatcher) setIcon(_ context.Context, port int, cmd string) error {
	addrs, insts := buttonArgs(cmd)
	icon := protocol.Atoi(protocol.GetField(cmd, 2, ","))
	if icon == protocol.InvalidChannel || icon < 0 {
		return fmt.Errorf("%w: icon %q", ErrBadArgs, protocol.GetField(cmd, 2, ","))
	}
	return d.matched(cmd, d.panel.SetIcon(port, addrs, insts, icon))
}

func (d *Dispatcher) setGeometry(_ context.Context, port int, cmd string) error {
	addrs := protocol.GetRange(protocol.GetField(cmd, 0, ","))
	var v [4]int
	for i := range v {
		v[i] = protocol.Atoi(protocol.GetField(cmd, i+1, ","))
		if v[i] == protocol.InvalidChannel {
			return fmt.Errorf("%w: geometry %q", ErrBadArgs, cmd)
		}
	}
	return d.matched(cmd, d.panel.SetGeometry(port, addrs, v[0], v[1], v[2], v[3]))
}

func (d *Dispatcher) clearPageFlips(_ context.Context, port int, cmd string) error {
	addrs := protocol.GetRange(protocol.GetField(cmd, 0, ","))
	return d.matched(cmd, d.panel.ClearPageFlips(port, addrs))
}

func flag(cmd string) (bool, error) {
	switch strings.TrimSpace(protocol.GetField(cmd, 1, ",")) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: want 0 or 1 in %q", ErrBadArgs, cmd)
}

func (d *Dispatcher) setEnabled(_ context.Context, port int, cmd string) error {
	on, err := flag(cmd)
	if err != nil {
		return err
	}
	addrs := protocol.GetRange(protocol.GetField(cmd, 0, ","))
	return d.matched(cmd, d.panel.SetEnabled(port, addrs, on))
}

func (d *Dispatcher) setShown(_ context.Context, port int, cmd string) error {
	on, err := flag(cmd)
	if err != nil {
		return err
	}
	addrs := protocol.GetRange(protocol.GetField(cmd, 0, ","))
	return d.matched(cmd, d.panel.SetShown(port, addrs, on))
}

// portChannel reads "[port,]channel", defaulting the port to the message
// port.
func portChannel(port int, cmd string) (model.Address, error) {
	if protocol.FieldCount(cmd, ",") >= 2 {
		port = protocol.Atoi(protocol.GetField(cmd, 0, ","))
		ch := protocol.Atoi(protocol.GetField(cmd, 1, ","))
		if port == protocol.InvalidChannel || ch == protocol.InvalidChannel {
			return model.Address{}, fmt.Errorf("%w: %q", ErrBadArgs, cmd)
		}
		return model.Address{Port: port, Channel: ch}, nil
	}
	ch := protocol.Atoi(protocol.GetField(cmd, 0, ","))
	if ch == protocol.InvalidChannel {
		return model.Address{}, fmt.Errorf("%w: %q", ErrBadArgs, cmd)
	}
	return model.Address{Port: port, Channel: ch}, nil
}

func (d *Dispatcher) channelOn(_ context.Context, port int, cmd string) error {
	addr, err := portChannel(port, cmd)
	if err != nil {
		return err
	}
	d.panel.SetChannel(addr, true)
	return nil
}

func (d *Dispatcher) channelOff(_ context.Context, port int, cmd string) error {
	addr, err := portChannel(port, cmd)
	if err != nil {
		return err
	}
	d.panel.SetChannel(addr, false)
	return nil
}

// level reads "port,level,value".
func (d *Dispatcher) level(_ context.Context, _ int, cmd string) error {
	var v [3]int
	for i := range v {
		v[i] = protocol.Atoi(protocol.GetField(cmd, i, ","))
		if v[i] == protocol.InvalidChannel {
			return fmt.Errorf("%w: level %q", ErrBadArgs, cmd)
		}
	}
	d.panel.SetLevel(v[0], v[1], v[2])
	return nil
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func resourceArgs(cmd string) (string, resource.Resource) {
	name := strings.TrimSpace(protocol.GetField(cmd, 0, ","))
	rf := protocol.ParseResourceData(protocol.GetTail(cmd, 1, ","))
	return name, resource.Resource{
		Name:     name,
		Protocol: rf.Protocol,
		Host:     rf.Host,
		Path:     rf.Path,
		File:     rf.File,
		User:     rf.User,
		Password: rf.Password,
		Refresh:  rf.Refresh,
	}
}

func (d *Dispatcher) addResource(_ context.Context, _ int, cmd string) error {
	name, r := resourceArgs(cmd)
	if name == "" {
		return fmt.Errorf("%w: resource name missing", ErrBadArgs)
	}
	if err := d.resources.Add(r); err != nil {
		d.log.Info("resource not added", "resource", name, "error", err)
	}
	return nil
}

func (d *Dispatcher) modifyResource(_ context.Context, _ int, cmd string) error {
	name, r := resourceArgs(cmd)
	if err := d.resources.Update(name, r); err != nil {
		return fmt.Errorf("modify %q: %w", name, err)
	}
	return nil
}

func (d *Dispatcher) removeResource(_ context.Context, _ int, cmd string) error {
	name := strings.TrimSpace(protocol.GetField(cmd, 0, ","))
	if !d.resources.Remove(name) {
		return fmt.Errorf("remove %q: %w", name, resource.ErrResourceNotFound)
	}
	return nil
}

// refreshResource reloads the images showing a resource, once or every
// Refresh seconds. A periodic refresh stops itself when nothing shows the
// resource any more.
func (d *Dispatcher) refreshResource(_ context.Context, _ int, cmd string) error {
	name := strings.TrimSpace(protocol.GetField(cmd, 0, ","))
	r, ok := d.resources.Find(name)
	if !ok {
		return fmt.Errorf("refresh %q: %w", name, resource.ErrResourceNotFound)
	}
	reload := func() error {
		d.refreshN++
		_, err := d.panel.Engine().RefreshResource(name, d.refreshN)
		return err
	}
	if r.Refresh <= 0 || d.refresher == nil {
		return reload()
	}
	if err := reload(); err != nil {
		return err
	}
	d.refresher.Start(name, time.Duration(r.Refresh)*time.Second, reload)
	return nil
}
