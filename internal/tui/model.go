package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Screen string

const (
	ScreenDashboard      Screen = "dashboard"
	ScreenCustomers      Screen = "customers"
	ScreenCustomerDetail Screen = "customer_detail"
	ScreenOrders         Screen = "orders"
	ScreenAppointments   Screen = "appointments"
	ScreenPayments       Screen = "payments"
)

// tabs lists the top-level screens in the order their keys are shown.
var tabs = []struct {
	key    string
	label  string
	screen Screen
}{
	{"1", "Dashboard", ScreenDashboard},
	{"2", "Customers", ScreenCustomers},
	{"3", "Orders", ScreenOrders},
	{"4", "Appointments", ScreenAppointments},
	{"5", "Payments", ScreenPayments},
}

type Dashboard struct {
	Day               string
	Currency          string
	Customers         int64
	Orders            int64
	OpenOrders        int64
	Revenue           string
	Outstanding       string
	AppointmentsToday int64
	Today             []Appointment
}

type Customer struct {
	ID      int64
	Name    string
	Phone   string
	Email   string
	Address string
}

type Order struct {
	ID           int64
	CustomerID   int64
	CustomerName string
	Type         string
	Status       string
	Total        string
	Remaining    string
}

type Appointment struct {
	ID           int64
	CustomerName string
	Date         string
	Time         string
	Purpose      string
	Status       string
}

type Payment struct {
	ID           int64
	OrderID      int64
	CustomerName string
	Date         string
	Amount       string
	Method       string
}

// Client is the read side the browser needs.
type Client interface {
	Dashboard(ctx context.Context) (Dashboard, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListPayments(ctx context.Context) ([]Payment, error)
}

type Options struct {
	Client Client
	IsTTY  func() bool
}

type Model struct {
	client Client

	screen Screen
	err    string
	width  int

	dashboard        Dashboard
	customersList    list.Model
	ordersList       list.Model
	appointmentsList list.Model
	paymentsList     list.Model

	customersByID      map[int64]Customer
	orders             []Order
	selectedCustomerID int64
}

type loadedMsg struct {
	dashboard    Dashboard
	customers    []Customer
	orders       []Order
	appointments []Appointment
	payments     []Payment
	err          error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	activeTab     = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2).MarginRight(1)
	cardLabel     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	cardValue     = lipgloss.NewStyle().Bold(true)
	detailHeading = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

func Run(opts Options) error {
	if opts.IsTTY != nil && !opts.IsTTY() {
		return fmt.Errorf("tui: requires a tty")
	}
	_, err := tea.NewProgram(NewModel(opts), tea.WithAltScreen()).Run()
	return err
}

func NewModel(opts Options) Model {
	return Model{
		client:           opts.Client,
		screen:           ScreenDashboard,
		width:            80,
		customersList:    newList("Customers"),
		ordersList:       newList("Orders"),
		appointmentsList: newList("Appointments"),
		paymentsList:     newList("Payments"),
		customersByID:    map[int64]Customer{},
	}
}

func newList(title string) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	l.SetSize(80, 20)
	return l
}

func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return m.loadDataCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.filtering() {
			break
		}
		switch typed.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.err = ""
			return m, m.loadDataCmd()
		case "esc":
			if m.screen == ScreenCustomerDetail {
				m.screen = ScreenCustomers
				return m, nil
			}
		case "enter":
			if m.screen == ScreenCustomers {
				item, ok := m.customersList.SelectedItem().(customerItem)
				if !ok {
					return m, nil
				}
				m.selectedCustomerID = item.id
				m.screen = ScreenCustomerDetail
				return m, nil
			}
		case "tab":
			m.screen = nextTab(m.screen)
			return m, nil
		}
		for _, tab := range tabs {
			if typed.String() == tab.key {
				m.screen = tab.screen
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		m.width = typed.Width
		height := typed.Height - 4
		if height < 1 {
			height = 1
		}
		m.customersList.SetSize(typed.Width, height)
		m.ordersList.SetSize(typed.Width, height)
		m.appointmentsList.SetSize(typed.Width, height)
		m.paymentsList.SetSize(typed.Width, height)
		return m, nil
	case loadedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.err = ""
		m.populate(typed)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.screen {
	case ScreenCustomers:
		m.customersList, cmd = m.customersList.Update(msg)
	case ScreenOrders:
		m.ordersList, cmd = m.ordersList.Update(msg)
	case ScreenAppointments:
		m.appointmentsList, cmd = m.appointmentsList.Update(msg)
	case ScreenPayments:
		m.paymentsList, cmd = m.paymentsList.Update(msg)
	}
	return m, cmd
}

// filtering reports whether the active list owns the keyboard.
func (m Model) filtering() bool {
	switch m.screen {
	case ScreenCustomers:
		return m.customersList.SettingFilter()
	case ScreenOrders:
		return m.ordersList.SettingFilter()
	case ScreenAppointments:
		return m.appointmentsList.SettingFilter()
	case ScreenPayments:
		return m.paymentsList.SettingFilter()
	}
	return false
}

func nextTab(current Screen) Screen {
	if current == ScreenCustomerDetail {
		current = ScreenCustomers
	}
	for i, tab := range tabs {
		if tab.screen == current {
			return tabs[(i+1)%len(tabs)].screen
		}
	}
	return ScreenDashboard
}

func (m Model) View() string {
	header := m.renderTabs() + "\n"
	if m.err != "" {
		header += errorStyle.Render("Error: "+m.err) + "\n"
	}

	switch m.screen {
	case ScreenCustomers:
		return header + "\n" + listOrEmpty(m.customersList, "No customers yet.", "Add one with `tailorcrm customer add --name ...`")
	case ScreenCustomerDetail:
		return header + "\n" + m.renderCustomerDetail()
	case ScreenOrders:
		return header + "\n" + listOrEmpty(m.ordersList, "No orders yet.", "Add one with `tailorcrm order add --customer ...`")
	case ScreenAppointments:
		return header + "\n" + listOrEmpty(m.appointmentsList, "No appointments yet.", "Book one with `tailorcrm appointment add ...`")
	case ScreenPayments:
		return header + "\n" + listOrEmpty(m.paymentsList, "No payments yet.", "Record one with `tailorcrm payment add ...`")
	default:
		return header + "\n" + m.renderDashboard()
	}
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(tabs)+2)
	parts = append(parts, titleStyle.Render("TailorCRM"))
	active := m.screen
	if active == ScreenCustomerDetail {
		active = ScreenCustomers
	}
	for _, tab := range tabs {
		label := "[" + tab.key + "] " + tab.label
		if tab.screen == active {
			parts = append(parts, activeTab.Render(label))
		} else {
			parts = append(parts, inactiveTab.Render(label))
		}
	}
	parts = append(parts, inactiveTab.Render("[r] Refresh  [q] Quit"))
	return strings.Join(parts, "  ")
}

func listOrEmpty(l list.Model, title, guidance string) string {
	if len(l.Items()) == 0 {
		return renderEmptyState(title, guidance)
	}
	return l.View()
}

func renderEmptyState(title, guidance string) string {
	return title + "\n" + guidance
}

func (m Model) renderDashboard() string {
	d := m.dashboard
	money := func(v string) string {
		if d.Currency == "" {
			return v
		}
		return v + " " + d.Currency
	}
	cards := []string{
		renderCard("Customers", fmt.Sprint(d.Customers)),
		renderCard("Orders", fmt.Sprintf("%d (%d open)", d.Orders, d.OpenOrders)),
		renderCard("Revenue", money(d.Revenue)),
		renderCard("Outstanding", money(d.Outstanding)),
		renderCard("Today", fmt.Sprint(d.AppointmentsToday)),
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	out += "\n" + detailHeading.Render("Appointments "+d.Day) + "\n"
	if len(d.Today) == 0 {
		return out + "Nothing scheduled."
	}
	lines := make([]string, 0, len(d.Today))
	for _, a := range d.Today {
		lines = append(lines, fmt.Sprintf("%s  %-20s %s", a.Time, a.CustomerName, a.Purpose))
	}
	return out + strings.Join(lines, "\n")
}

func renderCard(label, value string) string {
	return cardStyle.Render(cardLabel.Render(label) + "\n" + cardValue.Render(value))
}

func (m Model) renderCustomerDetail() string {
	customer, ok := m.customersByID[m.selectedCustomerID]
	if !ok {
		return "Customer detail unavailable"
	}
	out := fmt.Sprintf(
		"Customer Detail\n\nName: %s\nPhone: %s\nEmail: %s\nAddress: %s\n",
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.Address,
	)

	out += detailHeading.Render("Orders") + "\n"
	found := false
	for _, o := range m.orders {
		if o.CustomerID != customer.ID {
			continue
		}
		found = true
		out += fmt.Sprintf("#%d %s  %s  total=%s remaining=%s\n", o.ID, o.Type, o.Status, o.Total, o.Remaining)
	}
	if !found {
		out += "No orders.\n"
	}
	return out + "\nPress ESC to go back."
}

func (m Model) loadDataCmd() tea.Cmd {
	client := m.client
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		return loadData(client)
	}
}

func loadData(client Client) tea.Msg {
	ctx := context.Background()
	dashboard, err := client.Dashboard(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	customers, err := client.ListCustomers(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	orders, err := client.ListOrders(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	appointments, err := client.ListAppointments(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	payments, err := client.ListPayments(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{
		dashboard:    dashboard,
		customers:    customers,
		orders:       orders,
		appointments: appointments,
		payments:     payments,
	}
}

func (m *Model) populate(msg loadedMsg) {
	m.dashboard = msg.dashboard
	m.orders = msg.orders

	customerItems := make([]list.Item, 0, len(msg.customers))
	byID := make(map[int64]Customer, len(msg.customers))
	for _, c := range msg.customers {
		customerItems = append(customerItems, customerItem{id: c.ID, name: c.Name, description: joinNonEmpty(c.Phone, c.Email)})
		byID[c.ID] = c
	}
	m.customersByID = byID
	m.customersList.SetItems(customerItems)

	orderItems := make([]list.Item, 0, len(msg.orders))
	for _, o := range msg.orders {
		orderItems = append(orderItems, item{
			title:       fmt.Sprintf("#%d %s", o.ID, o.Type),
			description: fmt.Sprintf("%s  %s  total=%s remaining=%s", o.CustomerName, o.Status, o.Total, o.Remaining),
		})
	}
	m.ordersList.SetItems(orderItems)

	appointmentItems := make([]list.Item, 0, len(msg.appointments))
	for _, a := range msg.appointments {
		appointmentItems = append(appointmentItems, item{
			title:       fmt.Sprintf("%s %s  %s", a.Date, a.Time, a.CustomerName),
			description: fmt.Sprintf("%s  %s", a.Purpose, a.Status),
		})
	}
	m.appointmentsList.SetItems(appointmentItems)

	paymentItems := make([]list.Item, 0, len(msg.payments))
	for _, p := range msg.payments {
		paymentItems = append(paymentItems, item{
			title:       fmt.Sprintf("%s  %s", p.Amount, p.CustomerName),
			description: fmt.Sprintf("order #%d  %s  %s", p.OrderID, p.Date, p.Method),
		})
	}
	m.paymentsList.SetItems(paymentItems)
}

func joinNonEmpty(values ...string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, "  ")
}

type customerItem struct {
	id          int64
	name        string
	description string
}

func (i customerItem) Title() string       { return i.name }
func (i customerItem) Description() string { return i.description }
func (i customerItem) FilterValue() string { return i.name + " " + i.description }

type item struct {
	title       string
	description string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.description }
func (i item) FilterValue() string { return i.title + " " + i.description }
